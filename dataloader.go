package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/graph-gophers/dataloader/v7"
)

// newAuthorLoader returns a batched loader for author profile snapshots.
// The feed creates one per request: the same author typically owns several
// candidate posts, so a request-scoped loader collapses those lookups into
// a single IN query and serves repeats from its cache.
func newAuthorLoader(db *sql.DB) *dataloader.Loader[int, *Profile] {
	return dataloader.NewBatchedLoader(authorBatchFn(db),
		dataloader.WithWait[int, *Profile](2*time.Millisecond))
}

func authorBatchFn(db *sql.DB) dataloader.BatchFunc[int, *Profile] {
	return func(ctx context.Context, keys []int) []*dataloader.Result[*Profile] {
		results := make([]*dataloader.Result[*Profile], len(keys))
		for i := range results {
			results[i] = &dataloader.Result[*Profile]{}
		}
		if len(keys) == 0 {
			return results
		}

		// userID -> position(s) in the keys slice
		indexes := make(map[int][]int, len(keys))
		placeholders := make([]string, len(keys))
		args := make([]interface{}, len(keys))
		for i, key := range keys {
			indexes[key] = append(indexes[key], i)
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = key
		}

		query := "SELECT " + profileColumns + " FROM profiles WHERE user_id IN (" +
			strings.Join(placeholders, ", ") + ")"
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			for i := range results {
				results[i].Error = err
			}
			return results
		}
		defer rows.Close()

		for rows.Next() {
			p, _, _, err := scanProfile(rows)
			if err != nil {
				continue
			}
			profile := p
			for _, i := range indexes[p.UserID] {
				results[i].Data = &profile
			}
		}

		// Keys with no profile row resolve to an error, not a nil snapshot.
		for i, key := range keys {
			if results[i].Data == nil && results[i].Error == nil {
				results[i].Error = fmt.Errorf("profile %d not found", key)
			}
		}
		return results
	}
}
