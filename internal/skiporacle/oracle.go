// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later
// Package skiporacle implements the three-tier lookup/promotion protocol
// (spec §4.C, component C): mtime, then content hash, then VCS ref
// identity.
package skiporacle

import (
	"context"
	"fmt"
	"time"

	"github.com/lun-build/lun/internal/cachestore"
	"github.com/lun-build/lun/internal/fingerprint"
	"github.com/lun-build/lun/internal/vcs"
	"github.com/lun-build/lun/internal/warnings"
)

// Tier names which lookup tier produced a hit, for metrics and tests.
type Tier string

const (
	TierMiss    Tier = ""
	TierMtime   Tier = "mtime"
	TierContent Tier = "content"
	TierVCS     Tier = "vcs"
)

// Decision is the oracle's verdict for one (file, tool) pair.
type Decision struct {
	Skip bool
	Tier Tier

	// MKey and CKey are populated whenever computed, so the Executor can
	// reuse them instead of re-deriving on a successful run.
	MKey     fingerprint.Key
	CKey     fingerprint.Key
	HaveMKey bool
	HaveCKey bool
}

// Oracle evaluates the skip ladder against a cache store.
type Oracle struct {
	cache        *cachestore.Store
	fp           *fingerprint.Fingerprinter
	vcsAdapter   vcs.Adapter
	refs         []string
	mtimeEnabled bool
	warn         *warnings.Registry
}

// New builds an Oracle. mtimeEnabled corresponds to the resolved
// configuration's `mtime` flag (spec §6), refs to `refs`.
func New(cache *cachestore.Store, fp *fingerprint.Fingerprinter, adapter vcs.Adapter, refs []string, mtimeEnabled bool, warn *warnings.Registry) *Oracle {
	if adapter == nil {
		adapter = vcs.None{}
	}
	return &Oracle{cache: cache, fp: fp, vcsAdapter: adapter, refs: refs, mtimeEnabled: mtimeEnabled, warn: warn}
}

// Decide runs the ladder from spec §4.C. A hit at a slower tier promotes
// the faster tiers enabled for this pair so the next run short-circuits
// earlier. configChanged disables the mtime tier for this pair only (the
// "invalidation corner case"): no mkey is computed, looked up, or
// promoted, and the returned Decision has HaveMKey false.
func (o *Oracle) Decide(ctx context.Context, in fingerprint.Inputs, configChanged bool) (Decision, error) {
	now := time.Now()
	effectiveMtime := o.mtimeEnabled && !configChanged

	var mkey fingerprint.Key
	if effectiveMtime {
		mkey = o.fp.MKey(in)
		if o.cache.Lookup(cachestore.MtimeTier, mkey) {
			return Decision{Skip: true, Tier: TierMtime, MKey: mkey, HaveMKey: true}, nil
		}
	}

	ckey, err := o.fp.CKey(in)
	if err != nil {
		return Decision{}, err
	}
	if o.cache.Lookup(cachestore.ContentTier, ckey) {
		if effectiveMtime {
			_ = o.cache.Insert(cachestore.MtimeTier, mkey, now)
		}
		return Decision{Skip: true, Tier: TierContent, MKey: mkey, HaveMKey: effectiveMtime, CKey: ckey, HaveCKey: true}, nil
	}

	if len(o.refs) > 0 {
		for _, ref := range o.refs {
			ok, err := o.vcsAdapter.FileMatchesRef(ctx, in.File.Path, ref)
			if err != nil {
				if o.warn != nil {
					o.warn.Emit(warnings.Refs, fmt.Sprintf("%s@%s: %v", in.File.Path, ref, err))
				}
				continue
			}
			if ok {
				_ = o.cache.Insert(cachestore.ContentTier, ckey, now)
				if effectiveMtime {
					_ = o.cache.Insert(cachestore.MtimeTier, mkey, now)
				}
				return Decision{Skip: true, Tier: TierVCS, MKey: mkey, HaveMKey: effectiveMtime, CKey: ckey, HaveCKey: true}, nil
			}
		}
	}

	return Decision{Skip: false, Tier: TierMiss, MKey: mkey, HaveMKey: effectiveMtime, CKey: ckey, HaveCKey: true}, nil
}
