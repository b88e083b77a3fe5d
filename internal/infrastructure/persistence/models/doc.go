// Package models contains the GORM persistence models for the order tables.
// They stay separate from the domain types so the domain package carries no
// ORM tags; the To/From helpers convert between the two.
package models
