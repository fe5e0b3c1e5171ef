package storage

import (
	"context"
	"fmt"

	"github.com/CodAressss/orders-batch-service/internal/ingest"
)

// CatalogStore reads the referential catalog (clients, zones, existing order
// numbers) that batches validate against.
type CatalogStore struct {
	conn *Connection
}

// Compile-time interface compliance check.
var _ ingest.CatalogSnapshotReader = (*CatalogStore)(nil)

// NewCatalogStore creates a catalog reader backed by the given connection.
func NewCatalogStore(conn *Connection) *CatalogStore {
	return &CatalogStore{conn: conn}
}

// LoadSnapshot captures the catalog in one point-in-time view: active client
// IDs, zone refrigeration capabilities, and every persisted order number. The
// snapshot is read once per batch and held in memory, so validation of
// individual rows never touches the database.
func (s *CatalogStore) LoadSnapshot(ctx context.Context) (*ingest.CatalogSnapshot, error) {
	activeClients, err := s.loadActiveClients(ctx)
	if err != nil {
		return nil, err
	}

	zones, err := s.loadZones(ctx)
	if err != nil {
		return nil, err
	}

	orderNumbers, err := s.loadExistingOrderNumbers(ctx)
	if err != nil {
		return nil, err
	}

	return &ingest.CatalogSnapshot{
		ActiveClients:        activeClients,
		Zones:                zones,
		ExistingOrderNumbers: orderNumbers,
	}, nil
}

func (s *CatalogStore) loadActiveClients(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id FROM clients WHERE active = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active clients: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	clients := make(map[string]struct{})

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}

		clients[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}

	return clients, nil
}

func (s *CatalogStore) loadZones(ctx context.Context) (map[string]bool, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, refrigeration_capable FROM zones`)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	zones := make(map[string]bool)

	for rows.Next() {
		var (
			id           string
			refrigerated bool
		)

		if err := rows.Scan(&id, &refrigerated); err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}

		zones[id] = refrigerated
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating zones: %w", err)
	}

	return zones, nil
}

func (s *CatalogStore) loadExistingOrderNumbers(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT order_number FROM orders`)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing order numbers: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	numbers := make(map[string]struct{})

	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, fmt.Errorf("failed to scan order number: %w", err)
		}

		numbers[number] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order numbers: %w", err)
	}

	return numbers, nil
}
