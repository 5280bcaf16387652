package naturegraph

import (
	"context"
	"errors"
	"fmt"
)

// EnsureIndices creates store indices and the vector index if they do not
// exist. It is safe to call on every start.
func (c *Client) EnsureIndices(ctx context.Context) error {
	if err := c.store.CreateIndices(ctx); err != nil {
		return fmt.Errorf("failed to create graph indices: %w", err)
	}
	if c.vectors != nil {
		if err := c.vectors.EnsureIndex(ctx); err != nil {
			return fmt.Errorf("failed to create vector index: %w", err)
		}
	}
	return nil
}

// Reset removes every node and relationship from the store and drops any
// in-process vector state. It cannot be undone.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear graph: %w", err)
	}
	if c.vectors != nil {
		c.vectors.Reset()
	}
	c.logger.Warn("Graph reset", "provider", c.store.Provider())
	return nil
}

// Close releases the store, the embedding client and the language models.
func (c *Client) Close() error {
	var errs []error
	if c.vectors != nil {
		errs = append(errs, c.vectors.Close())
	}
	if m := c.languageModels.Extraction; m != nil {
		errs = append(errs, m.Close())
	}
	if m := c.languageModels.Answer; m != nil && m != c.languageModels.Extraction {
		errs = append(errs, m.Close())
	}
	errs = append(errs, c.store.Close())
	return errors.Join(errs...)
}
