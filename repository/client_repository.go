package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"eurobank-ledger/logger"
	"eurobank-ledger/model"

	"github.com/sirupsen/logrus"
)

// IClientRepository defines the client store contract.
type IClientRepository interface {
	Create(ctx context.Context, client *model.Client) error
	Get(ctx context.Context, id int64) (*model.Client, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Search matches term against last name, first name and client number,
	// case-insensitively, ordered by last then first name.
	Search(ctx context.Context, term string, limit, offset int) ([]*model.Client, int64, error)
}

type ClientRepository struct {
	DB *sql.DB
}

func NewClientRepository(db *sql.DB) *ClientRepository {
	return &ClientRepository{DB: db}
}

const clientColumns = `id, number, title, last_name, first_name, birth_date, COALESCE(email, ''), phone, address,
	postal_code, city, country, status, segment, branch_code, created_at`

func scanClient(row interface{ Scan(...interface{}) error }) (*model.Client, error) {
	var c model.Client
	err := row.Scan(&c.ID, &c.Number, &c.Title, &c.LastName, &c.FirstName, &c.BirthDate, &c.Email, &c.Phone, &c.Address,
		&c.PostalCode, &c.City, &c.Country, &c.Status, &c.Segment, &c.BranchCode, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClientRepository) Create(ctx context.Context, client *model.Client) error {
	log := logger.Log.WithFields(logrus.Fields{
		"client_number": client.Number,
		"segment":       client.Segment,
	})
	log.Info("Executing query to create a new client")

	var email sql.NullString
	if client.Email != "" {
		email = sql.NullString{String: client.Email, Valid: true}
	}
	query := `INSERT INTO clients (number, title, last_name, first_name, birth_date, email, phone, address,
		postal_code, city, country, status, segment, branch_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`
	err := r.DB.QueryRowContext(ctx, query,
		client.Number, client.Title, client.LastName, client.FirstName, client.BirthDate, email, client.Phone, client.Address,
		client.PostalCode, client.City, client.Country, client.Status, client.Segment, client.BranchCode, client.CreatedAt,
	).Scan(&client.ID)
	if err != nil {
		if isUniqueViolation(err) {
			log.Warn("Client number or email already taken")
			return ErrDuplicateClient
		}
		log.WithError(err).Error("Failed to execute create client query")
		return err
	}
	return nil
}

func (r *ClientRepository) Get(ctx context.Context, id int64) (*model.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	client, err := scanClient(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Log.WithError(err).WithField("client_id", id).Error("Failed to execute get client query")
		return nil, err
	}
	return client, nil
}

func (r *ClientRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM clients WHERE LOWER(email) = LOWER($1))`
	if err := r.DB.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		logger.Log.WithError(err).Error("Failed to execute client email lookup")
		return false, err
	}
	return exists, nil
}

func (r *ClientRepository) Search(ctx context.Context, term string, limit, offset int) ([]*model.Client, int64, error) {
	log := logger.Log.WithField("term", term)
	log.Debug("Executing client search query")

	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	where := ` WHERE LOWER(last_name) LIKE $1 OR LOWER(first_name) LIKE $1 OR LOWER(number) LIKE $1`

	var total int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`+where, pattern).Scan(&total); err != nil {
		log.WithError(err).Error("Failed to execute count clients query")
		return nil, 0, err
	}

	query := `SELECT ` + clientColumns + ` FROM clients` + where + ` ORDER BY last_name, first_name, id LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, pattern, limit, offset)
	if err != nil {
		log.WithError(err).Error("Failed to execute search clients query")
		return nil, 0, err
	}
	defer rows.Close()

	var clients []*model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		clients = append(clients, c)
	}
	return clients, total, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
