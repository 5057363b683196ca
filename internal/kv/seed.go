package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/caja/internal/password"
	"github.com/mesh-intelligence/caja/pkg/types"
)

// seededMarker is the metadata key recording that first-use seeding ran.
const seededMarker = "seeded"

// defaultAdminPassword is used when no seed password is configured.
const defaultAdminPassword = "Admin1234"

var exampleProducts = []types.Product{
	{Name: "Coffee", Price: 2.50, Cost: 0.80},
	{Name: "Croissant", Price: 3.00, Cost: 1.10},
	{Name: "Orange Juice", Price: 3.50, Cost: 1.25},
	{Name: "Tea", Price: 2.00, Cost: 0.40},
}

// exampleSales lists the quantities of each example product per sale.
var exampleSales = []map[string]int64{
	{"Coffee": 2, "Croissant": 1},
	{"Tea": 1, "Orange Juice": 2},
}

// seedAll fills the permission catalog when it is empty and, on first use
// only, seeds the administrator and the example data. Later launches never
// recreate an administrator that was deleted or demoted.
func (s *Store) seedAll(ctx context.Context) error {
	if err := s.seedPermissions(ctx); err != nil {
		return fmt.Errorf("seeding permissions: %w", err)
	}

	_, seeded, err := s.tables.GetMeta(ctx, seededMarker)
	if err != nil {
		return err
	}
	if seeded {
		return nil
	}
	if err := s.seedAdmin(ctx); err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}
	if s.seedExamples {
		if err := s.seedExampleData(ctx); err != nil {
			return fmt.Errorf("seeding examples: %w", err)
		}
	}
	return s.tables.SetMeta(ctx, seededMarker, time.Now().Format(time.RFC3339))
}

// seedPermissions fills the catalog when the table is empty.
func (s *Store) seedPermissions(ctx context.Context) error {
	unlock := s.tables.Lock(types.PermissionsTable)
	defer unlock()

	perms, err := load[types.Permission](ctx, s.tables, types.PermissionsTable)
	if err != nil {
		return err
	}
	if len(perms) > 0 {
		return nil
	}
	for _, name := range types.PermissionCatalog {
		if _, err := insertLocked(ctx, s.tables, types.PermissionsTable, types.Permission{Name: name}); err != nil {
			return err
		}
	}
	return nil
}

// seedAdmin creates the default administrator unless an admin or a user
// with the administrator's username already exists.
func (s *Store) seedAdmin(ctx context.Context) error {
	hasAdmin, err := s.HasAdmin(ctx)
	if err != nil || hasAdmin {
		return err
	}
	username := s.seed.GetAdminUsername()
	_, err = s.GetUserByUsername(ctx, username)
	if err == nil {
		s.log.Warn("skipping administrator seed, username is taken", "username", username)
		return nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return err
	}
	plain := s.seed.AdminPassword
	if plain == "" {
		plain = defaultAdminPassword
		s.log.Warn("seeding administrator with the default password; change it after first login",
			"username", username)
	}
	hash, err := password.Hash(plain)
	if err != nil {
		return err
	}
	id, err := s.AddUser(ctx, types.User{
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      true,
	})
	if err != nil {
		return err
	}
	s.log.Info("seeded administrator", "id", id, "username", username)
	return nil
}

func (s *Store) seedExampleData(ctx context.Context) error {
	byName := make(map[string]types.Product, len(exampleProducts))
	for _, p := range exampleProducts {
		id, err := s.AddProduct(ctx, p)
		if err != nil {
			return err
		}
		byName[p.Name] = p.WithID(id)
	}

	now := time.Now()
	for i, lines := range exampleSales {
		var items []types.SaleItem
		for _, p := range exampleProducts {
			qty, ok := lines[p.Name]
			if !ok {
				continue
			}
			item, err := types.NewSaleItem(byName[p.Name], qty)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		total := types.SaleTotal(items)
		sale, err := types.NewSale(total, total, "", 0, now.Add(time.Duration(i-len(exampleSales))*time.Minute))
		if err != nil {
			return err
		}
		saleID, err := s.AddSale(ctx, sale)
		if err != nil {
			return err
		}
		for _, item := range items {
			item.SaleID = saleID
			if _, err := s.AddSaleItem(ctx, item); err != nil {
				return err
			}
		}
	}
	s.log.Info("seeded example data", "products", len(exampleProducts), "sales", len(exampleSales))
	return nil
}
