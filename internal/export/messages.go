package export

import (
	"context"
	"fmt"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/pkg/logger"
	"github.com/chatforge/realmsync/internal/schema"
)

// messageSource pages one ID-ordered message query. The fetch callback
// must return rows with id > afterID, ascending, at most limit.
type messageSource struct {
	fetch func(ctx context.Context, afterID int64, limit int) ([]domain.Record, error)
	buf   []domain.Record
	after int64
	done  bool
}

func (s *messageSource) peek(ctx context.Context, limit int) (domain.Record, error) {
	if len(s.buf) == 0 && !s.done {
		rows, err := s.fetch(ctx, s.after, limit)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			s.done = true
		} else {
			s.buf = rows
			s.after = rows[len(rows)-1].Int("id")
		}
	}
	if len(s.buf) == 0 {
		return nil, nil
	}
	return s.buf[0], nil
}

func (s *messageSource) pop() { s.buf = s.buf[1:] }

// exportMessages writes the message chunk files for the run and returns
// the chunk count plus the IDs of every exported message. Files are
// written with a .partial suffix; FinalizeUserMessages produces the final
// files once the UserMessage rows are merged in.
//
// All sources page in ascending primary-key order and chunks are filled
// from a merge of those cursors, so within and across chunk files message
// IDs are strictly ascending. The importer's sequential ID allocation
// depends on that ordering.
func (e *Exporter) exportMessages(ctx context.Context, dir string, resp domain.TableData, ec *schema.Context) (int, []int64, error) {
	sources, err := e.messageSources(ctx, resp, ec)
	if err != nil {
		return 0, nil, err
	}

	var (
		chunk      []domain.Record
		chunkNum   int // chunk files are one based
		allIDs     []int64
		lastID     int64 = -1
		flushChunk       = func() error {
			if len(chunk) == 0 {
				return nil
			}
			chunkNum++
			normalizeTable(domain.TableMessage, chunk, nil)
			payload := domain.TableData{domain.TableMessage: chunk}
			if err := writeJSONFile(partialChunkFile(dir, chunkNum), payload); err != nil {
				return err
			}
			logger.Info("wrote message chunk",
				"chunk", chunkNum, "messages", len(chunk))
			chunk = nil
			return nil
		}
	)

	for {
		// Pick the source holding the globally smallest next ID.
		var best *messageSource
		var bestRow domain.Record
		for _, s := range sources {
			row, err := s.peek(ctx, e.chunkSize)
			if err != nil {
				return 0, nil, err
			}
			if row == nil {
				continue
			}
			if bestRow == nil || row.Int("id") < bestRow.Int("id") {
				best, bestRow = s, row
			}
		}
		if bestRow == nil {
			break
		}
		best.pop()

		// The by-sender and by-recipient cursors overlap; a message
		// sent by an exportable user into an allowed conversation
		// appears on both. Drop the duplicate here.
		id := bestRow.Int("id")
		if id == lastID {
			continue
		}
		lastID = id

		chunk = append(chunk, bestRow)
		allIDs = append(allIDs, id)
		if len(chunk) >= e.chunkSize {
			if err := flushChunk(); err != nil {
				return 0, nil, err
			}
		}
	}
	if err := flushChunk(); err != nil {
		return 0, nil, err
	}
	return chunkNum, allIDs, nil
}

// messageSources builds the cursor set for the run. A full export uses a
// single by-recipient cursor over every realm recipient. A consented
// export merges two cursors: conversations a consenting user participates
// in, plus everything the exportable users sent.
func (e *Exporter) messageSources(ctx context.Context, resp domain.TableData, ec *schema.Context) ([]*messageSource, error) {
	if !ec.IsPartial() {
		recipientIDs := domain.IDs(resp[domain.TableRecipient], "id")
		return []*messageSource{{
			fetch: func(ctx context.Context, after int64, limit int) ([]domain.Record, error) {
				return e.store.FetchMessageChunk(ctx, recipientIDs, after, limit)
			},
		}}, nil
	}

	exportable := make([]int64, 0, len(ec.ExportableUserIDs))
	for id := range ec.ExportableUserIDs {
		exportable = append(exportable, id)
	}
	sort.Slice(exportable, func(i, j int) bool { return exportable[i] < exportable[j] })

	// Conversations visible to the export: every recipient a consenting
	// user is subscribed to or addressed by. For private streams this
	// includes history from before the consenting user joined; the
	// subscriber set at export time decides, not the historical one.
	allowed, err := e.store.RecipientIDsForUsers(ctx, exportable)
	if err != nil {
		return nil, err
	}
	logger.Info("consented export message scope",
		"users", len(exportable), "recipients", len(allowed))

	return []*messageSource{
		{fetch: func(ctx context.Context, after int64, limit int) ([]domain.Record, error) {
			return e.store.FetchMessageChunk(ctx, allowed, after, limit)
		}},
		{fetch: func(ctx context.Context, after int64, limit int) ([]domain.Record, error) {
			return e.store.FetchMessageChunkBySender(ctx, exportable, after, limit)
		}},
	}, nil
}

// FinalizeUserMessages runs the second export pass: for each .partial
// chunk file, fetch the UserMessage rows for its messages, merge them into
// the payload, and write the final chunk file. Chunks are independent, so
// the pass is sharded across workers.
func (e *Exporter) FinalizeUserMessages(ctx context.Context, dir string, chunks int, ec *schema.Context) error {
	var userIDs []int64
	if ec.IsPartial() {
		for id := range ec.ExportableUserIDs {
			userIDs = append(userIDs, id)
		}
		sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.shards)
	for n := 1; n <= chunks; n++ {
		g.Go(func() error {
			partial := partialChunkFile(dir, n)
			var payload domain.TableData
			if err := readJSONFile(partial, &payload); err != nil {
				return err
			}
			ums, err := e.store.FetchUserMessages(gctx,
				domain.IDs(payload[domain.TableMessage], "id"), userIDs)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", n, err)
			}
			normalizeTable(domain.TableUserMessage, ums, nil)
			payload[domain.TableUserMessage] = ums
			if err := writeJSONFile(ChunkFile(dir, n), payload); err != nil {
				return err
			}
			return os.Remove(partial)
		})
	}
	return g.Wait()
}
