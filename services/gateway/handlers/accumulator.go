// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

const (
	// secureBufferSize is the mlocked buffer for one streamed reply.
	// 512 KB holds roughly 131k tokens at 4 bytes per token, far beyond
	// the stream length limits.
	secureBufferSize = 512 * 1024

	// minMlockLimitKB is the smallest RLIMIT_MEMLOCK that still fits one
	// secure buffer.
	minMlockLimitKB = 512
)

var (
	memguardInitOnce    sync.Once
	mlockSufficient     bool
	currentMlockLimitKB int64
)

// TokenAccumulator collects streamed model tokens before the reply is
// released to the client. Replies may contain PHI echoed back by the model,
// so the buffer must never reach swap; tokens are hashed incrementally so
// the finished reply carries an integrity hash.
//
// Implementations are safe for concurrent use. An accumulator cannot be
// reused after Finalize or Destroy.
type TokenAccumulator interface {
	// Write appends one token and folds it into the running hash.
	Write(token string) error

	// Finalize returns the accumulated reply and its SHA-256 hex hash,
	// then wipes the buffer.
	Finalize() (answer string, hash string, err error)

	// Destroy wipes the buffer without returning data. Idempotent; meant
	// for error paths.
	Destroy()

	// ID identifies the accumulator instance in logs.
	ID() string

	// CreatedAt is when the accumulator was built.
	CreatedAt() time.Time
}

// NewTokenAccumulator allocates an mlocked accumulator. When the mlock
// limit is too low, CASCADIA_INSECURE_MEMORY=true permits a plain-memory
// fallback; without it, allocation fails rather than risking PHI in swap.
func NewTokenAccumulator() (TokenAccumulator, error) {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, currentMlockLimitKB = checkMlockLimit()
	})

	if !mlockSufficient {
		if os.Getenv("CASCADIA_INSECURE_MEMORY") != "true" {
			return nil, fmt.Errorf(
				"mlock limit insufficient: have %d KB, need %d KB; raise the limit or set CASCADIA_INSECURE_MEMORY=true",
				currentMlockLimitKB, minMlockLimitKB)
		}
		return newInsecureAccumulator(), nil
	}

	buf := memguard.NewBuffer(secureBufferSize)
	if buf == nil {
		return nil, fmt.Errorf("failed to allocate a secure buffer of %d bytes", secureBufferSize)
	}
	buf.Melt()

	return &secureAccumulator{
		id:        uuid.New().String(),
		createdAt: time.Now(),
		buffer:    buf,
		hasher:    sha256.New(),
	}, nil
}

// PurgeSecureMemory wipes every memguard allocation. Call during graceful
// shutdown.
func PurgeSecureMemory() {
	memguard.Purge()
	slog.Info("purged all secure memory")
}

func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("could not determine the mlock limit", "error", err)
		return true, -1
	}
	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}
	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= minMlockLimitKB, limitKB
}

// secureAccumulator stores tokens in an mlocked, guard-paged buffer.
type secureAccumulator struct {
	id        string
	createdAt time.Time

	mu        sync.Mutex
	buffer    *memguard.LockedBuffer
	offset    int
	hasher    hash.Hash
	overflow  bool
	destroyed bool
}

func (a *secureAccumulator) Write(token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		return fmt.Errorf("secure buffer overflow: response too large")
	}

	tokenBytes := []byte(token)
	if a.offset+len(tokenBytes) > secureBufferSize {
		a.overflow = true
		return fmt.Errorf("secure buffer overflow: need %d bytes, have %d remaining",
			len(tokenBytes), secureBufferSize-a.offset)
	}

	copy(a.buffer.Bytes()[a.offset:], tokenBytes)
	a.offset += len(tokenBytes)
	a.hasher.Write(tokenBytes)
	return nil
}

func (a *secureAccumulator) Finalize() (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return "", "", fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		a.wipe()
		return "", "", fmt.Errorf("buffer overflowed during accumulation")
	}

	answer := string(a.buffer.Bytes()[:a.offset])
	hashStr := hex.EncodeToString(a.hasher.Sum(nil))
	a.wipe()

	slog.Debug("finalized secure token accumulator",
		"accumulator_id", a.id, "answer_length", len(answer))
	return answer, hashStr, nil
}

func (a *secureAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}
	a.wipe()
}

func (a *secureAccumulator) ID() string           { return a.id }
func (a *secureAccumulator) CreatedAt() time.Time { return a.createdAt }

func (a *secureAccumulator) wipe() {
	if a.buffer != nil {
		a.buffer.Destroy()
	}
	a.destroyed = true
}

// insecureAccumulator is the plain-memory fallback. Wiping is best effort:
// the garbage collector may have copied the data already.
type insecureAccumulator struct {
	id        string
	createdAt time.Time

	mu        sync.Mutex
	data      []byte
	hasher    hash.Hash
	overflow  bool
	destroyed bool
}

func newInsecureAccumulator() TokenAccumulator {
	acc := &insecureAccumulator{
		id:        uuid.New().String(),
		createdAt: time.Now(),
		data:      make([]byte, 0, secureBufferSize),
		hasher:    sha256.New(),
	}
	slog.Warn("created INSECURE token accumulator, data may be swapped to disk",
		"accumulator_id", acc.id)
	return acc
}

func (a *insecureAccumulator) Write(token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		return fmt.Errorf("buffer overflow: response too large")
	}

	tokenBytes := []byte(token)
	if len(a.data)+len(tokenBytes) > secureBufferSize {
		a.overflow = true
		return fmt.Errorf("buffer overflow: need %d bytes, have %d remaining",
			len(tokenBytes), secureBufferSize-len(a.data))
	}

	a.data = append(a.data, tokenBytes...)
	a.hasher.Write(tokenBytes)
	return nil
}

func (a *insecureAccumulator) Finalize() (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return "", "", fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		a.wipe()
		return "", "", fmt.Errorf("buffer overflowed during accumulation")
	}

	answer := string(a.data)
	hashStr := hex.EncodeToString(a.hasher.Sum(nil))
	a.wipe()
	return answer, hashStr, nil
}

func (a *insecureAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}
	a.wipe()
}

func (a *insecureAccumulator) ID() string           { return a.id }
func (a *insecureAccumulator) CreatedAt() time.Time { return a.createdAt }

func (a *insecureAccumulator) wipe() {
	for i := range a.data {
		a.data[i] = 0
	}
	a.data = nil
	a.destroyed = true
}
