package checkout

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

type ShippingInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code"`
	Country   string `json:"country"`
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\d{10}$`)
)

// prefill copies what the account already knows about the shopper.
func prefill(u *domain.User, country string) ShippingInfo {
	return ShippingInfo{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		Address:   u.Address,
		Country:   country,
	}
}

// Validate reports the first missing or malformed field.
func (s ShippingInfo) Validate() error {
	required := []struct {
		field, label, value string
	}{
		{"first_name", "First name", s.FirstName},
		{"last_name", "Last name", s.LastName},
		{"email", "Email", s.Email},
		{"phone", "Phone", s.Phone},
		{"address", "Address", s.Address},
		{"city", "City", s.City},
		{"state", "State", s.State},
		{"zip_code", "Zip code", s.ZipCode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &apperr.ValidationError{Field: r.field, Message: r.label + " is required"}
		}
	}
	if !emailPattern.MatchString(s.Email) {
		return &apperr.ValidationError{Field: "email", Message: "Please enter a valid email address"}
	}
	if !phonePattern.MatchString(s.Phone) {
		return &apperr.ValidationError{Field: "phone", Message: "Please enter a valid 10-digit phone number"}
	}
	return nil
}

// FormatAddress renders the single-line address stored on the order.
func (s ShippingInfo) FormatAddress() string {
	return fmt.Sprintf("%s %s, %s, %s, %s, %s, %s. Phone: %s",
		s.FirstName, s.LastName, s.Address, s.City, s.State, s.ZipCode, s.Country, s.Phone)
}

type PaymentMethod string

// MethodGateway is the hosted card/UPI widget, the only method offered.
const MethodGateway PaymentMethod = "razorpay"

func (m PaymentMethod) Valid() bool {
	return m == MethodGateway
}
