package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/recall-go/memory/index"
)

// fragmentsSnapshot is the on-disk shape of <project>_memories.json.
type fragmentsSnapshot struct {
	Memories         map[string]*Fragment     `json:"memories"`
	Metadata         map[string]*fragmentMeta `json:"metadata"`
	PerformanceStats performanceStats         `json:"performance_stats"`
	LastSaved        time.Time                `json:"last_saved"`
}

// indexSnapshot is the on-disk shape of <project>_vector_index.json.
type indexSnapshot struct {
	Indices   map[string]index.Entry `json:"indices"`
	Stats     index.Stats            `json:"stats"`
	LastSaved time.Time              `json:"last_saved"`
}

// persist writes both snapshots, logging rather than failing on error:
// durability is best-effort and the in-memory mutation already succeeded.
func (e *Engine) persist() {
	if err := e.save(); err != nil {
		log.WithError(err).Error("persist failed; state will re-sync on next successful save")
	}
}

// save writes both snapshot files as full overwrites. The two writes are
// independent; both errors are reported.
func (e *Engine) save() error {
	now := time.Now()

	e.mu.Lock()
	fragments := fragmentsSnapshot{
		Memories:         make(map[string]*Fragment, len(e.fragments)),
		Metadata:         make(map[string]*fragmentMeta, len(e.meta)),
		PerformanceStats: e.perf,
		LastSaved:        now,
	}
	for id, frag := range e.fragments {
		fragments.Memories[id] = frag
	}
	for id, meta := range e.meta {
		// Value copies: searches mutate the live structs under the lock,
		// and marshaling below happens after we release it.
		m := *meta
		fragments.Metadata[id] = &m
	}
	idx := e.idx
	e.mu.Unlock()

	indices := indexSnapshot{
		Indices:   idx.Snapshot(),
		Stats:     idx.Stats(),
		LastSaved: now,
	}

	var errs *multierror.Error
	if err := writeJSON(e.fragmentsPath, fragments); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("write fragments snapshot: %w", err))
	}
	if err := writeJSON(e.indexPath, indices); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("write index snapshot: %w", err))
	}
	return errs.ErrorOrNil()
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// load restores both snapshots. Missing files mean an empty collection;
// unreadable files are logged and skipped (the rebuild below repairs a
// half-loaded state). After loading, a fragment/index size mismatch forces
// a rebuild before the engine serves anything.
func (e *Engine) load(ctx context.Context) {
	var fragments fragmentsSnapshot
	if readJSON(e.fragmentsPath, &fragments) {
		for id, frag := range fragments.Memories {
			frag.ID = id
			e.fragments[id] = frag
			e.bumpSeq(id)
		}
		for id, meta := range fragments.Metadata {
			e.meta[id] = meta
		}
		e.perf = fragments.PerformanceStats
		e.perf.TotalMemories = len(e.fragments)
	}

	var indices indexSnapshot
	if readJSON(e.indexPath, &indices) {
		e.idx.Load(indices.Indices)
	}

	if len(e.fragments) != e.idx.Size() {
		log.WithFields(log.Fields{
			"fragments": len(e.fragments),
			"vectors":   e.idx.Size(),
		}).Warn("loaded fragment/index snapshots disagree, rebuilding vector index")
		e.rebuild(ctx)
	}
}

// readJSON loads path into v, reporting whether anything usable was read.
func readJSON(path string, v interface{}) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).WithField("path", path).Error("read snapshot failed, starting empty")
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.WithError(err).WithField("path", path).Error("decode snapshot failed, starting empty")
		return false
	}
	return true
}

// bumpSeq advances the id sequence past a loaded id so new ids never
// collide with persisted ones.
func (e *Engine) bumpSeq(id string) {
	if seq, ok := idSeq(id); ok && seq > e.nextSeq {
		e.nextSeq = seq
	}
}

// idSeq extracts the numeric insertion sequence from a fragment id.
func idSeq(id string) (uint64, bool) {
	parts := strings.Split(id, "_")
	if len(parts) < 3 || parts[0] != "mem" {
		return 0, false
	}
	seq, err := strconv.ParseUint(parts[1], 10, 64)
	return seq, err == nil
}
