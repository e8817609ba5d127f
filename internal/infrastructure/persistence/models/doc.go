// Package models contains the GORM persistence models. Domain types stay free
// of ORM tags; each model converts with ToDomain and FromDomain.
//
// Money columns are decimal(18,4). Posting days are stored as YYYY-MM-DD
// strings so that daily-delta keys compare the same on Postgres and SQLite.
package models
