// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the signed-in session and a login history in a
// local SQLite database.
//
// # Usage
//
//	store, err := storage.Open(path)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	rec, err := store.LoadSession(ctx)
//	if errors.Is(err, storage.ErrNotFound) {
//	    // not signed in
//	}
//
// # Storage Location
//
// The database lives at ~/.schoolhub/session.db and is created 0600 because
// it holds the bearer token.
package storage
