// Package models contains the GORM persistence models of the ledger tables.
// Domain entities stay free of ORM tags; each model converts with ToDomain
// and FromDomain.
package models
