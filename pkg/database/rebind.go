package database

import "github.com/jmoiron/sqlx"

// Rebind rewrites ? placeholders to $1..$N when postgres is true
func Rebind(postgres bool, query string) string {
	return rebind(postgres, query)
}

func rebind(postgres bool, query string) string {
	if !postgres {
		return query
	}
	return sqlx.Rebind(sqlx.DOLLAR, query)
}
