// Package fakeapi is an in-memory stand-in for the storefront REST API,
// served over httptest for package tests.
package fakeapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/shopspring/decimal"
)

// PaymentSecret signs gateway results the way the real gateway would.
const PaymentSecret = "fake-gateway-secret"

var tokenKey = []byte("fakeapi-signing-key-0123456789abcdef0123456789abcdef")

type user struct {
	domain.User
	password string
}

type failure struct {
	status int
	times  int
}

type Server struct {
	*httptest.Server

	mu          sync.Mutex
	users       map[string]*user
	tokens      map[string]domain.UserID
	products    map[domain.ProductID]*domain.Product
	carts       map[domain.UserID][]domain.CartLine
	wishlists   map[domain.UserID][]domain.ProductID
	orders      map[domain.OrderID]*domain.Order
	idempotency map[string]domain.OrderID
	failures    map[string]*failure
	calls       map[string]int
	nextUserID  domain.UserID
	nextOrderID domain.OrderID
}

func New(t testing.TB) *Server {
	s := &Server{
		users:       map[string]*user{},
		tokens:      map[string]domain.UserID{},
		products:    map[domain.ProductID]*domain.Product{},
		carts:       map[domain.UserID][]domain.CartLine{},
		wishlists:   map[domain.UserID][]domain.ProductID{},
		orders:      map[domain.OrderID]*domain.Order{},
		idempotency: map[string]domain.OrderID{},
		failures:    map[string]*failure{},
		calls:       map[string]int{},
		nextUserID:  1,
		nextOrderID: 1,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to hand to api.New.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Post("/auth/register", s.register)
		r.Get("/products", s.listProducts)
		r.Get("/products/categories", s.categories)
		r.Get("/products/{id}", s.getProduct)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/auth/profile", s.profile)
			r.Put("/auth/profile", s.updateProfile)

			r.Post("/products", s.createProduct)
			r.Put("/products/{id}", s.updateProduct)
			r.Delete("/products/{id}", s.deleteProduct)

			r.Get("/cart", s.getCart)
			r.Post("/cart/add", s.addToCart)
			r.Put("/cart/update/{id}", s.updateCart)
			r.Delete("/cart/remove/{id}", s.removeFromCart)
			r.Delete("/cart/clear", s.clearCart)

			r.Get("/wishlist", s.getWishlist)
			r.Post("/wishlist/add", s.addToWishlist)
			r.Delete("/wishlist/remove/{id}", s.removeFromWishlist)
			r.Delete("/wishlist/clear", s.clearWishlist)
			r.Post("/wishlist/move-to-cart", s.moveToCart)

			r.Post("/orders", s.createOrder)
			r.Get("/orders", s.listOrders)
			r.Get("/orders/admin", s.adminOrders)
			r.Put("/orders/admin/{id}/status", s.adminUpdateStatus)
			r.Get("/orders/{id}", s.getOrder)
			r.Put("/orders/{id}/cancel", s.cancelOrder)

			r.Post("/payment/create-order/{id}", s.createPayment)
			r.Post("/payment/verify", s.verifyPayment)
			r.Get("/payment/status/{id}", s.paymentStatus)
		})
	})
	return r
}

// --- fixtures and controls ---

func (s *Server) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.products[p.ID] = &cp
}

// Product returns a copy of the stored product.
func (s *Server) Product(id domain.ProductID) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, false
	}
	return *p, true
}

// AddUser registers an account and returns a valid token for it.
func (s *Server) AddUser(u domain.User, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.nextUserID
	}
	if u.ID >= s.nextUserID {
		s.nextUserID = u.ID + 1
	}
	s.users[u.Email] = &user{User: u, password: password}
	return s.issueLocked(u.ID, time.Now().Add(time.Hour))
}

// IssueToken mints a token for the user expiring at exp.
func (s *Server) IssueToken(id domain.UserID, exp time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(id, exp)
}

// Revoke makes every later request with token answer 401.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// FailNext makes the next n requests to route ("POST /api/cart/add")
// answer with status.
func (s *Server) FailNext(route string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = &failure{status: status, times: n}
}

// Calls counts requests per route, failed ones included.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// SetCart replaces a user's server-side cart.
func (s *Server) SetCart(id domain.UserID, qty map[domain.ProductID]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[id] = nil
	for pid, q := range qty {
		s.carts[id] = append(s.carts[id], domain.CartLine{ProductID: pid, Quantity: q})
	}
}

// CartQuantities returns a user's server-side cart as product -> quantity.
func (s *Server) CartQuantities(id domain.UserID) map[domain.ProductID]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[domain.ProductID]int{}
	for _, l := range s.carts[id] {
		out[l.ProductID] = l.Quantity
	}
	return out
}

func (s *Server) WishlistIDs(id domain.UserID) []domain.ProductID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ProductID(nil), s.wishlists[id]...)
}

func (s *Server) SetWishlist(id domain.UserID, ids ...domain.ProductID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wishlists[id] = append([]domain.ProductID(nil), ids...)
}

func (s *Server) Order(id domain.OrderID) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

func (s *Server) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// Sign returns the signature the gateway would attach to a payment.
func Sign(gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(PaymentSecret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Server) issueLocked(id domain.UserID, exp time.Time) string {
	sig, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: tokenKey}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		panic(err)
	}
	raw, err := jwt.Signed(sig).Claims(jwt.Claims{
		Subject:  strconv.FormatInt(int64(id), 10),
		IssuedAt: jwt.NewNumericDate(time.Now()),
		Expiry:   jwt.NewNumericDate(exp),
		ID:       strconv.FormatInt(time.Now().UnixNano(), 36),
	}).Serialize()
	if err != nil {
		panic(err)
	}
	s.tokens[raw] = id
	return raw
}

// --- middleware ---

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.calls[route]++
		f := s.failures[route]
		var status int
		if f != nil && f.times > 0 {
			f.times--
			status = f.status
		}
		s.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"message": "injected failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxUser struct{}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		id, ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token has expired"})
			return
		}
		r.Header.Set("X-User-ID", strconv.FormatInt(int64(id), 10))
		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) domain.UserID {
	id, _ := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	return domain.UserID(id)
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func message(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"message": fmt.Sprintf(format, args...)})
}

func decode(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func (s *Server) userByIDLocked(id domain.UserID) *user {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// --- auth ---

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct{ Email, Password string }
	if !decode(r, &in) || in.Email == "" || in.Password == "" {
		message(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[in.Email]
	if !ok || u.password != in.Password {
		message(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": s.issueLocked(u.ID, time.Now().Add(time.Hour)),
		"user":         u.User,
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in domain.Registration
	if !decode(r, &in) {
		message(w, http.StatusBadRequest, "invalid body")
		return
	}
	for field, v := range map[string]string{"email": in.Email, "password": in.Password, "first_name": in.FirstName, "last_name": in.LastName} {
		if v == "" {
			message(w, http.StatusBadRequest, "Field %s is required", field)
			return
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[in.Email]; exists {
		message(w, http.StatusBadRequest, "Email already registered")
		return
	}
	u := &user{
		User:     domain.User{ID: s.nextUserID, Email: in.Email, FirstName: in.FirstName, LastName: in.LastName, Phone: in.Phone, Address: in.Address},
		password: in.Password,
	}
	s.nextUserID++
	s.users[in.Email] = u
	writeJSON(w, http.StatusCreated, map[string]any{
		"access_token": s.issueLocked(u.ID, time.Now().Add(time.Hour)),
		"user":         u.User,
	})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userByIDLocked(userID(r))
	if u == nil {
		message(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u.User)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in domain.ProfileUpdate
	if !decode(r, &in) {
		message(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userByIDLocked(userID(r))
	if u == nil {
		message(w, http.StatusNotFound, "User not found")
		return
	}
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	if in.Address != nil {
		u.Address = *in.Address
	}
	if in.Password != nil {
		u.password = *in.Password
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Profile updated successfully", "user": u.User})
}

// --- catalog ---

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Product{}
	for id := domain.ProductID(1); len(out) < len(s.products) && id < 10000; id++ {
		if p, ok := s.products[id]; ok && (category == "" || p.Category == category) {
			out = append(out, *p)
		}
	}
	writeJSON(w, http.StatusOK, domain.ProductPage{Products: out, Total: len(out), Pages: 1, CurrentPage: 1})
}

func (s *Server) categories(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for id := domain.ProductID(1); id < 10000 && len(seen) < len(s.products); id++ {
		if p, ok := s.products[id]; ok && p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[domain.ProductID(pathID(r))]
	if !ok {
		message(w, http.StatusNotFound, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var in domain.ProductInput
	if !decode(r, &in) {
		message(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.requireAdminLocked(w, r) {
		return
	}
	if in.Name == "" || in.Category == "" {
		message(w, http.StatusBadRequest, "Field name is required")
		return
	}
	id := domain.ProductID(1)
	for s.products[id] != nil {
		id++
	}
	p := &domain.Product{
		ID:             id,
		Name:           in.Name,
		Description:    in.Description,
		Price:          in.Price,
		Stock:          in.Stock,
		Category:       in.Category,
		Specifications: in.Specifications,
		Images:         in.Images,
		CreatedAt:      time.Now().UTC(),
	}
	s.products[id] = p
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	var in domain.ProductUpdate
	if !decode(r, &in) {
		message(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.requireAdminLocked(w, r) {
		return
	}
	p, ok := s.products[domain.ProductID(pathID(r))]
	if !ok {
		message(w, http.StatusNotFound, "Product not found")
		return
	}
	in.Apply(p)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.requireAdminLocked(w, r) {
		return
	}
	id := domain.ProductID(pathID(r))
	if _, ok := s.products[id]; !ok {
		message(w, http.StatusNotFound, "Product not found")
		return
	}
	delete(s.products, id)
	message(w, http.StatusOK, "Product deleted successfully")
}

// --- cart ---

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userID(r)
	items := []map[string]any{}
	total := decimal.Zero
	for i, l := range s.carts[uid] {
		p := s.products[l.ProductID]
		if p == nil {
			continue
		}
		items = append(items, map[string]any{"id": i + 1, "product_id": l.ProductID, "quantity": l.Quantity, "product": p})
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart_items": items, "total_items": len(items), "total_amount": total})
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ProductID domain.ProductID `json:"product_id"`
		Quantity  int              `json:"quantity"`
	}
	if !decode(r, &in) || in.ProductID == 0 || in.Quantity == 0 {
		message(w, http.StatusBadRequest, "Product ID and quantity are required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[in.ProductID]
	if !ok {
		message(w, http.StatusNotFound, "Product not found")
		return
	}
	if p.Stock < in.Quantity {
		message(w, http.StatusBadRequest, "Insufficient stock available")
		return
	}
	uid := userID(r)
	for i, l := range s.carts[uid] {
		if l.ProductID == in.ProductID {
			s.carts[uid][i].Quantity += in.Quantity
			writeJSON(w, http.StatusOK, map[string]string{"message": "Item added to cart successfully"})
			return
		}
	}
	s.carts[uid] = append(s.carts[uid], domain.CartLine{ProductID: in.ProductID, Quantity: in.Quantity})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Item added to cart successfully"})
}

func (s *Server) updateCart(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Quantity int `json:"quantity"`
	}
	if !decode(r, &in) {
		message(w, http.StatusBadRequest, "Quantity is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, pid := userID(r), domain.ProductID(pathID(r))
	for i, l := range s.carts[uid] {
		if l.ProductID == pid {
			if s.products[pid].Stock < in.Quantity {
				message(w, http.StatusBadRequest, "Insufficient stock available")
				return
			}
			s.carts[uid][i].Quantity = in.Quantity
			writeJSON(w, http.StatusOK, map[string]string{"message": "Cart item updated successfully"})
			return
		}
	}
	message(w, http.StatusNotFound, "Cart item not found")
}

func (s *Server) removeFromCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, pid := userID(r), domain.ProductID(pathID(r))
	for i, l := range s.carts[uid] {
		if l.ProductID == pid {
			s.carts[uid] = append(s.carts[uid][:i], s.carts[uid][i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Item removed from cart successfully"})
			return
		}
	}
	message(w, http.StatusNotFound, "Cart item not found")
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID(r))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared successfully"})
}

// --- wishlist ---

func (s *Server) getWishlist(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []domain.WishlistEntry{}
	for _, pid := range s.wishlists[userID(r)] {
		if p, ok := s.products[pid]; ok {
			items = append(items, domain.WishlistEntry{ProductID: pid, Product: *p})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) addToWishlist(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ProductID domain.ProductID `json:"product_id"`
	}
	if !decode(r, &in) || in.ProductID == 0 {
		message(w, http.StatusBadRequest, "Product ID is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[in.ProductID]; !ok {
		message(w, http.StatusNotFound, "Product not found")
		return
	}
	uid := userID(r)
	for _, pid := range s.wishlists[uid] {
		if pid == in.ProductID {
			writeJSON(w, http.StatusOK, map[string]string{"message": "Product already in wishlist"})
			return
		}
	}
	s.wishlists[uid] = append(s.wishlists[uid], in.ProductID)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Product added to wishlist"})
}

func (s *Server) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, pid := userID(r), domain.ProductID(pathID(r))
	kept := s.wishlists[uid][:0]
	for _, id := range s.wishlists[uid] {
		if id != pid {
			kept = append(kept, id)
		}
	}
	s.wishlists[uid] = kept
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product removed from wishlist"})
}

func (s *Server) clearWishlist(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.wishlists, userID(r))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Wishlist cleared"})
}

func (s *Server) moveToCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userID(r)
	for _, pid := range s.wishlists[uid] {
		found := false
		for i, l := range s.carts[uid] {
			if l.ProductID == pid {
				s.carts[uid][i].Quantity++
				found = true
			}
		}
		if !found {
			s.carts[uid] = append(s.carts[uid], domain.CartLine{ProductID: pid, Quantity: 1})
		}
	}
	delete(s.wishlists, uid)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Items moved to cart"})
}

// --- orders ---

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ShippingAddress string `json:"shipping_address"`
	}
	if !decode(r, &in) || in.ShippingAddress == "" {
		message(w, http.StatusBadRequest, "Shipping address is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.Header.Get("Idempotency-Key")
	if id, ok := s.idempotency[key]; ok && key != "" {
		writeJSON(w, http.StatusCreated, map[string]any{"order": s.orders[id]})
		return
	}

	uid := userID(r)
	lines := s.carts[uid]
	if len(lines) == 0 {
		message(w, http.StatusBadRequest, "Cart is empty")
		return
	}
	order := &domain.Order{
		ID:              s.nextOrderID,
		UserID:          uid,
		Status:          domain.OrderStatusPending,
		ShippingAddress: in.ShippingAddress,
		TotalAmount:     decimal.Zero,
		CreatedAt:       time.Now(),
	}
	for _, l := range lines {
		p := s.products[l.ProductID]
		if p.Stock < l.Quantity {
			message(w, http.StatusBadRequest, "Insufficient stock for %s", p.Name)
			return
		}
		order.Items = append(order.Items, domain.OrderItem{ProductID: l.ProductID, Quantity: l.Quantity, Price: p.Price})
		order.TotalAmount = order.TotalAmount.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	for _, l := range lines {
		s.products[l.ProductID].Stock -= l.Quantity
	}
	s.nextOrderID++
	s.orders[order.ID] = order
	if key != "" {
		s.idempotency[key] = order.ID
	}
	delete(s.carts, uid)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Order created successfully", "order": order})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userID(r)
	out := []domain.Order{}
	for id := s.nextOrderID - 1; id > 0; id-- {
		if o, ok := s.orders[id]; ok && o.UserID == uid {
			out = append(out, *o)
		}
	}
	writeJSON(w, http.StatusOK, domain.OrderPage{Orders: out, Total: len(out), Pages: 1, CurrentPage: 1})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[domain.OrderID(pathID(r))]
	if !ok || o.UserID != userID(r) {
		message(w, http.StatusNotFound, "Order not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[domain.OrderID(pathID(r))]
	if !ok || o.UserID != userID(r) {
		message(w, http.StatusNotFound, "Order not found")
		return
	}
	if o.Status != domain.OrderStatusPending {
		message(w, http.StatusBadRequest, "Cannot cancel order with status %s", o.Status)
		return
	}
	o.Status = domain.OrderStatusCancelled
	for _, it := range o.Items {
		if p, ok := s.products[it.ProductID]; ok {
			p.Stock += it.Quantity
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Order cancelled successfully", "order": o})
}

func (s *Server) requireAdminLocked(w http.ResponseWriter, r *http.Request) bool {
	u := s.userByIDLocked(userID(r))
	if u == nil || !u.IsAdmin {
		message(w, http.StatusForbidden, "Admin privileges required")
		return false
	}
	return true
}

func (s *Server) adminOrders(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.requireAdminLocked(w, r) {
		return
	}
	status := domain.OrderStatus(r.URL.Query().Get("status"))
	out := []domain.Order{}
	for id := s.nextOrderID - 1; id > 0; id-- {
		if o, ok := s.orders[id]; ok && (status == "" || o.Status == status) {
			out = append(out, *o)
		}
	}
	writeJSON(w, http.StatusOK, domain.OrderPage{Orders: out, Total: len(out), Pages: 1, CurrentPage: 1})
}

func (s *Server) adminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status domain.OrderStatus `json:"status"`
	}
	if !decode(r, &in) || in.Status == "" {
		message(w, http.StatusBadRequest, "Status is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.requireAdminLocked(w, r) {
		return
	}
	o, ok := s.orders[domain.OrderID(pathID(r))]
	if !ok {
		message(w, http.StatusNotFound, "Order not found")
		return
	}
	o.Status = in.Status
	writeJSON(w, http.StatusOK, map[string]any{"message": "Order status updated successfully", "order": o})
}

// --- payment ---

func gatewayOrderID(id domain.OrderID) string {
	return fmt.Sprintf("order_gw_%d", id)
}

func (s *Server) createPayment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[domain.OrderID(pathID(r))]
	if !ok || o.UserID != userID(r) {
		message(w, http.StatusNotFound, "Order not found")
		return
	}
	if o.Status != domain.OrderStatusPending {
		message(w, http.StatusBadRequest, "Cannot process payment for order with status %s", o.Status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Payment order created successfully",
		"order_id": gatewayOrderID(o.ID),
		"amount":   o.TotalAmount,
		"currency": "INR",
	})
}

func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var in domain.PaymentVerification
	if !decode(r, &in) {
		message(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[in.OrderID]
	if !ok || o.UserID != userID(r) {
		message(w, http.StatusNotFound, "Order not found")
		return
	}
	if in.GatewayOrderID != gatewayOrderID(o.ID) || !hmac.Equal([]byte(in.Signature), []byte(Sign(in.GatewayOrderID, in.GatewayPaymentID))) {
		message(w, http.StatusBadRequest, "Payment verification failed")
		return
	}
	o.Status = domain.OrderStatusPaid
	o.PaymentID = in.GatewayPaymentID
	writeJSON(w, http.StatusOK, map[string]any{"message": "Payment verified successfully", "order": o})
}

func (s *Server) paymentStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	for _, o := range s.orders {
		if o.PaymentID == id {
			writeJSON(w, http.StatusOK, map[string]any{"status": "captured"})
			return
		}
	}
	message(w, http.StatusBadRequest, "Failed to get payment status")
}
