// Package repo содержит репозитории PostgreSQL (pgx).
//
// Репозитории возвращают ErrNotFound вместо pgx.ErrNoRows.
// Схема БД — migrations/0001_init.sql.
package repo
