// Package models contains the data types stored in a tenant's database.
package models

import "time"

// Client is a customer of the empresa.
type Client struct {
	ID        string
	Name      string
	NIF       string
	Email     string
	Address   string
	CreatedAt time.Time
}
