// Package repo is the SQL persistence layer. Soft delete is an UPDATE that
// stamps fecha_baja; nothing is ever physically removed. Every entity exposes
// an active-only and an including-bajas listing.
package repo

import (
	"context"
	"database/sql"
	"errors"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// Pagina is one page of a listing plus the total row count before paging.
type Pagina[T any] struct {
	Items []T
	Total int64
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Evento is one audit-trail row.
type Evento struct {
	ID        int64  `json:"id"`
	TS        string `json:"ts" format:"date-time"`
	Tipo      string `json:"tipo"`
	Entidad   string `json:"entidad"`
	EntidadID int64  `json:"entidadId,omitempty"`
	Payload   string `json:"payload"`
}

// ListEventos returns the newest audit rows first, optionally scoped to one
// entity kind or one record.
func (r Repo) ListEventos(ctx context.Context, limit int, entidad string, entidadID int64) ([]Evento, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id,ts,tipo,entidad,COALESCE(entidad_id,0),payload_json FROM eventos`
	var args []any
	switch {
	case entidad != "" && entidadID != 0:
		query += ` WHERE entidad=? AND entidad_id=?`
		args = append(args, entidad, entidadID)
	case entidad != "":
		query += ` WHERE entidad=?`
		args = append(args, entidad)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Evento
	for rows.Next() {
		var e Evento
		if err := rows.Scan(&e.ID, &e.TS, &e.Tipo, &e.Entidad, &e.EntidadID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
