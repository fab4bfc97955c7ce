package domain

import (
	"strings"
	"time"
)

// Customer — покупатель. Email служит удостоверением владельца при изменении заказов.
type Customer struct {
	ID          int64
	Name        string
	Email       string
	PhoneNumber string
	CreatedAt   time.Time
}

// OwnedBy сравнивает email клиента с переданным без учёта регистра.
func (c Customer) OwnedBy(email string) bool {
	return strings.EqualFold(strings.TrimSpace(c.Email), strings.TrimSpace(email))
}

// Address — адрес доставки.
type Address struct {
	ID              int64
	CustomerID      int64
	ApartmentNumber string
	Street          string
	ZipCode         string
	City            string
	Country         string
	CreatedAt       time.Time
}
