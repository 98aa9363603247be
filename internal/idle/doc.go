// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package idle implements the two-stage inactivity timeout that signs a user
// out of the client.
//
// A Monitor is ACTIVE while the user is interacting. After the configured idle
// period it moves to WARNING and counts down once per second. Any activity
// during the countdown returns it to ACTIVE. When the countdown reaches zero
// the monitor moves to LOGGING_OUT and invokes the logout callback exactly
// once. When the callback resolves, successfully or not, the monitor returns
// to ACTIVE.
//
// All transitions are serialised under one mutex. Timer callbacks carry the
// generation they were armed with and do nothing once that generation is
// stale, so an activity notification that wins the lock always cancels a
// pending transition.
package idle
