package notify

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"bloomcart-be/internal/utils"

	"github.com/golang-jwt/jwt/v5"
)

const reviewAudience = "payment-review"

type ReviewClaims struct {
	OrderNumber string `json:"order_number"`
	jwt.RegisteredClaims
}

// LinkSigner issues the signed links staff use to approve or reject a wallet
// payment without logging in.
type LinkSigner struct {
	secret  []byte
	ttl     time.Duration
	baseURL string
	now     func() time.Time
}

func NewLinkSigner(secret string, ttl time.Duration, baseURL string) *LinkSigner {
	return &LinkSigner{
		secret:  []byte(secret),
		ttl:     ttl,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (s *LinkSigner) Sign(orderNumber string) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("review link secret is not set")
	}

	now := s.now()
	claims := ReviewClaims{
		OrderNumber: orderNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   orderNumber,
			Audience:  jwt.ClaimStrings{reviewAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify returns the order number a review token was issued for.
func (s *LinkSigner) Verify(tokenStr string) (string, error) {
	if len(s.secret) == 0 || tokenStr == "" {
		return "", ErrInvalidReviewLink
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&ReviewClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.secret, nil
		},
		jwt.WithAudience(reviewAudience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", ErrInvalidReviewLink
	}

	claims, ok := token.Claims.(*ReviewClaims)
	if !ok || !token.Valid || claims.OrderNumber == "" {
		return "", ErrInvalidReviewLink
	}
	return claims.OrderNumber, nil
}

// ReviewURL is the staff link for an order, already signed.
func (s *LinkSigner) ReviewURL(orderNumber string) (string, error) {
	token, err := s.Sign(orderNumber)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/api/orders/review?token=" + url.QueryEscape(token), nil
}

// DeepLink opens a chat with the store on WhatsApp with text prefilled.
func DeepLink(storePhone, text string) string {
	return "https://wa.me/" + utils.NormalizePhone(storePhone, "51") + "?text=" + url.QueryEscape(text)
}
