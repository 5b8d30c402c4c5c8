// Package models contains GORM persistence models for the staging database.
// Domain entities stay free of GORM tags; each model maps to and from its
// domain type with ToDomain / FromDomain.
package models
