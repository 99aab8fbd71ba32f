package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/okarlsen/daytally/internal/model"
)

// ListCategories returns all of the user's categories in display order.
func (db *DB) ListCategories(userID string) ([]model.Category, error) {
	return db.queryCategories(
		`SELECT id, user_id, name, is_prompt_choice, is_writable, sort_order, color, created_at
		 FROM categories WHERE user_id = ?
		 ORDER BY sort_order ASC, name ASC`,
		userID,
	)
}

// PromptCategories returns the categories offered when asking the user to
// classify a block of time.
func (db *DB) PromptCategories(userID string) ([]model.Category, error) {
	return db.queryCategories(
		`SELECT id, user_id, name, is_prompt_choice, is_writable, sort_order, color, created_at
		 FROM categories WHERE user_id = ? AND is_prompt_choice = 1
		 ORDER BY sort_order ASC, name ASC`,
		userID,
	)
}

// GetCategory returns one category by id, or nil when it does not exist.
func (db *DB) GetCategory(userID, id string) (*model.Category, error) {
	cats, err := db.queryCategories(
		`SELECT id, user_id, name, is_prompt_choice, is_writable, sort_order, color, created_at
		 FROM categories WHERE user_id = ? AND id = ?`,
		userID, id,
	)
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return nil, nil
	}
	return &cats[0], nil
}

// GetOrCreateCategoryByName resolves name to a category, case-insensitively,
// creating it when no match exists. Newly created categories sort after the
// seeded set.
func (db *DB) GetOrCreateCategoryByName(userID, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("category name is empty")
	}

	cats, err := db.ListCategories(userID)
	if err != nil {
		return nil, err
	}
	for i := range cats {
		if strings.EqualFold(cats[i].Name, name) {
			return &cats[i], nil
		}
	}

	maxOrder := 0
	for _, c := range cats {
		if c.SortOrder > maxOrder {
			maxOrder = c.SortOrder
		}
	}

	c := model.Category{
		ID:             newID("cat"),
		UserID:         userID,
		Name:           name,
		IsPromptChoice: false,
		IsWritable:     true,
		SortOrder:      maxOrder + 10,
		CreatedAt:      utcNow(),
	}
	if err := db.insertCategory(c); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCategory inserts a category with the given attributes.
func (db *DB) CreateCategory(c *model.Category) error {
	if c.ID == "" {
		c.ID = newID("cat")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utcNow()
	}
	return db.insertCategory(*c)
}

// CategoryUpdate carries the mutable fields of a category; nil means
// unchanged.
type CategoryUpdate struct {
	Name           *string
	IsPromptChoice *bool
	IsWritable     *bool
	SortOrder      *int
	Color          *string
}

// UpdateCategory applies the non-nil fields of u. Returns false when the
// category does not exist.
func (db *DB) UpdateCategory(userID, id string, u CategoryUpdate) (bool, error) {
	var sets []string
	var args []any
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*u.Name))
	}
	if u.IsPromptChoice != nil {
		sets = append(sets, "is_prompt_choice = ?")
		args = append(args, boolToInt(*u.IsPromptChoice))
	}
	if u.IsWritable != nil {
		sets = append(sets, "is_writable = ?")
		args = append(args, boolToInt(*u.IsWritable))
	}
	if u.SortOrder != nil {
		sets = append(sets, "sort_order = ?")
		args = append(args, *u.SortOrder)
	}
	if u.Color != nil {
		sets = append(sets, "color = ?")
		args = append(args, *u.Color)
	}
	if len(sets) == 0 {
		c, err := db.GetCategory(userID, id)
		return c != nil, err
	}

	args = append(args, userID, id)
	res, err := db.Exec(
		`UPDATE categories SET `+strings.Join(sets, ", ")+` WHERE user_id = ? AND id = ?`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("updating category: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteCategory removes a category if no entries reference it.
func (db *DB) DeleteCategory(userID, id string) (bool, error) {
	var inUse int
	err := db.QueryRow(
		`SELECT COUNT(1) FROM time_entries WHERE user_id = ? AND category_id = ?`,
		userID, id,
	).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("checking category usage: %w", err)
	}
	if inUse > 0 {
		return false, fmt.Errorf("category has %d entries", inUse)
	}

	res, err := db.Exec(`DELETE FROM categories WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return false, fmt.Errorf("deleting category: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (db *DB) insertCategory(c model.Category) error {
	_, err := db.Exec(
		`INSERT INTO categories (id, user_id, name, is_prompt_choice, is_writable, sort_order, color, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, boolToInt(c.IsPromptChoice), boolToInt(c.IsWritable),
		c.SortOrder, c.Color, c.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting category %q: %w", c.Name, err)
	}
	return nil
}

func (db *DB) queryCategories(query string, args ...any) ([]model.Category, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var c model.Category
		var prompt, writable int
		var createdStr string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &prompt, &writable, &c.SortOrder, &c.Color, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		c.IsPromptChoice = prompt != 0
		c.IsWritable = writable != 0
		if t, err := time.Parse(time.RFC3339, createdStr); err == nil {
			c.CreatedAt = t
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}
