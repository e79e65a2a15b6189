package postgres

import "salesdw/internal/storage"

func init() {
	storage.Register("postgres", New)
}
