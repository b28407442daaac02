package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"

	"eurobank-ledger/logger"
	"eurobank-ledger/model"
	"eurobank-ledger/repository"

	"github.com/sirupsen/logrus"
)

var (
	ErrClientNotFound       = errors.New("client not found")
	ErrDuplicateClient      = errors.New("a client with this email already exists")
	ErrInvalidClientRequest = errors.New("invalid client request")
)

const (
	DefaultCountry          = "FRANCE"
	maxClientNumberAttempts = 5
	defaultClientPageSize   = 20
)

// ClientService registers clients and looks them up.
type ClientService struct {
	clients repository.IClientRepository
	clock   Clock
}

func NewClientService(clients repository.IClientRepository, clock Clock) *ClientService {
	return &ClientService{clients: clients, clock: clock}
}

// Create registers an ACTIVE retail client attached to the default branch.
// The email, when given, must not belong to another client.
func (s *ClientService) Create(ctx context.Context, req model.CreateClientRequest) (*model.Client, error) {
	log := logger.Log.WithField("last_name", req.LastName)

	email := strings.TrimSpace(req.Email)
	if email != "" {
		exists, err := s.clients.ExistsByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrDuplicateClient
		}
	}
	country := strings.ToUpper(strings.TrimSpace(req.Country))
	if country == "" {
		country = DefaultCountry
	}

	var client *model.Client
	var err error
	for i := 0; i < maxClientNumberAttempts; i++ {
		now := s.clock.Now()
		client = &model.Client{
			Number:     newClientNumber(now.Format("060102")),
			Title:      req.Title,
			LastName:   strings.ToUpper(strings.TrimSpace(req.LastName)),
			FirstName:  capitalize(strings.TrimSpace(req.FirstName)),
			BirthDate:  req.BirthDate,
			Email:      email,
			Phone:      req.Phone,
			Address:    req.Address,
			PostalCode: req.PostalCode,
			City:       req.City,
			Country:    country,
			Status:     model.ClientStatusActive,
			Segment:    model.ClientSegmentRetail,
			BranchCode: BranchCode,
			CreatedAt:  now,
		}
		err = s.clients.Create(ctx, client)
		if !errors.Is(err, repository.ErrDuplicateClient) {
			break
		}
		// the email was checked above, so this is most likely a number clash
		log.WithField("client_number", client.Number).Warn("Client number or email already taken, retrying")
	}
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateClient) {
			return nil, ErrDuplicateClient
		}
		log.WithError(err).Error("Failed to create client")
		return nil, err
	}

	log.WithFields(logrus.Fields{"client_id": client.ID, "client_number": client.Number}).Info("Client created")
	return client, nil
}

func (s *ClientService) Get(ctx context.Context, id int64) (*model.Client, error) {
	client, err := s.clients.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrClientNotFound, id)
	}
	return client, err
}

// Search pages through the clients whose name or number contains the term.
func (s *ClientService) Search(ctx context.Context, q model.ClientSearchQuery) (*model.Page[*model.Client], error) {
	term := strings.TrimSpace(q.Term)
	if len([]rune(term)) < 2 {
		return nil, fmt.Errorf("%w: search term needs at least 2 characters", ErrInvalidClientRequest)
	}
	size := q.Size
	if size <= 0 {
		size = defaultClientPageSize
	}

	clients, total, err := s.clients.Search(ctx, term, size, q.Page*size)
	if err != nil {
		logger.Log.WithError(err).WithField("term", term).Error("Failed to search clients")
		return nil, err
	}
	if clients == nil {
		clients = []*model.Client{}
	}
	return &model.Page[*model.Client]{
		Content:       clients,
		Page:          q.Page,
		Size:          size,
		TotalElements: total,
		TotalPages:    int((total + int64(size) - 1) / int64(size)),
	}, nil
}

// newClientNumber is "C", the creation date as yyMMdd and 6 random digits.
func newClientNumber(date string) string {
	return "C" + date + fmt.Sprintf("%06d", rand.IntN(1000000))
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
