package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// transcriptLockClass namespaces advisory locks taken for transcript
// replacement.
const transcriptLockClass = "transcript_generated"

// transcriptLockKey is the bigint advisory lock key of a meeting. The full
// 64-bit id is hashed, so large ids do not fold onto each other.
func transcriptLockKey(meetingID int64) int64 {
	h := fnv.New64a()
	h.Write([]byte(transcriptLockClass))
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(meetingID))
	h.Write(b[:])
	return int64(h.Sum64())
}

// Postgres implements Store over a pgx pool.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Connect opens a pool and pings it. The caller closes the pool.
func Connect(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func (r *Postgres) Meeting(ctx context.Context, id int64) (Meeting, error) {
	var m Meeting
	err := r.db.QueryRow(ctx,
		`SELECT id, group_id, date FROM meetings WHERE id = $1`, id,
	).Scan(&m.ID, &m.GroupID, &m.Date)
	if err != nil {
		return Meeting{}, notFound(err, "meeting %d", id)
	}
	return m, nil
}

const rawFileColumns = `id, meeting_id, COALESCE(file_name, ''), COALESCE(human_name, ''),
	COALESCE(description, ''), type, processed_date`

func scanRawFile(row pgx.Row) (RawFile, error) {
	var f RawFile
	var typ string
	err := row.Scan(&f.ID, &f.MeetingID, &f.FileName, &f.HumanName, &f.Description, &typ, &f.ProcessedDate)
	f.Type = FileType(typ)
	return f, err
}

func (r *Postgres) AudioFile(ctx context.Context, meetingID int64) (RawFile, error) {
	f, err := scanRawFile(r.db.QueryRow(ctx,
		`SELECT `+rawFileColumns+` FROM raw_files
		WHERE meeting_id = $1 AND type = $2
		ORDER BY id LIMIT 1`, meetingID, string(FileAudio)))
	if err != nil {
		return RawFile{}, notFound(err, "audio file for meeting %d", meetingID)
	}
	return f, nil
}

const memberColumns = `gm.id, COALESCE(gm.name, ''), gm.embedding,
	COALESCE(gm.embedding_audio_path, ''), gm.embedding_updated_at`

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	var raw []byte
	if err := row.Scan(&m.ID, &m.Name, &raw, &m.EmbeddingAudioPath, &m.EmbeddingUpdatedAt); err != nil {
		return Member{}, err
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &m.Embedding); err != nil {
			return Member{}, fmt.Errorf("decoding embedding of member %d: %w", m.ID, err)
		}
	}
	return m, nil
}

func (r *Postgres) Attendees(ctx context.Context, meetingID int64) ([]Member, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+memberColumns+`
		FROM meetings_group_members mgm
		JOIN group_members gm ON gm.id = mgm.group_member_id
		WHERE mgm.meeting_id = $1
		ORDER BY gm.id`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("querying attendees: %w", err)
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning attendee: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Postgres) Member(ctx context.Context, id int64) (Member, error) {
	m, err := scanMember(r.db.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM group_members gm WHERE gm.id = $1`, id))
	if err != nil {
		return Member{}, notFound(err, "member %d", id)
	}
	return m, nil
}

func (r *Postgres) SaveMemberEmbedding(ctx context.Context, id int64, vec []float32, updatedAt time.Time) error {
	b, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encoding embedding: %w", err)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE group_members SET embedding = $2::json, embedding_updated_at = $3 WHERE id = $1`,
		id, string(b), updatedAt)
	if err != nil {
		return fmt.Errorf("saving embedding of member %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *Postgres) ReplaceGeneratedTranscript(ctx context.Context, rec RawFile, audioID int64) (Replacement, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Replacement{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`,
		transcriptLockKey(rec.MeetingID)); err != nil {
		return Replacement{}, fmt.Errorf("locking meeting %d: %w", rec.MeetingID, err)
	}

	rows, err := tx.Query(ctx,
		`DELETE FROM raw_files WHERE meeting_id = $1 AND type = $2
		RETURNING `+rawFileColumns, rec.MeetingID, string(FileTranscriptGenerated))
	if err != nil {
		return Replacement{}, fmt.Errorf("deleting generated transcripts: %w", err)
	}
	deleted, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (RawFile, error) {
		return scanRawFile(row)
	})
	if err != nil {
		return Replacement{}, fmt.Errorf("deleting generated transcripts: %w", err)
	}

	rec.Type = FileTranscriptGenerated
	err = tx.QueryRow(ctx,
		`INSERT INTO raw_files (file_name, human_name, description, meeting_id, type, processed_date)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		rec.FileName, rec.HumanName, rec.Description, rec.MeetingID, string(rec.Type), rec.ProcessedDate,
	).Scan(&rec.ID)
	if err != nil {
		return Replacement{}, fmt.Errorf("inserting transcript record: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE raw_files SET processed_date = $2 WHERE id = $1`, audioID, rec.ProcessedDate); err != nil {
		return Replacement{}, fmt.Errorf("marking audio %d processed: %w", audioID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Replacement{}, fmt.Errorf("committing transaction: %w", err)
	}
	return Replacement{Record: rec, Deleted: deleted}, nil
}

func notFound(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("querying %s: %w", what, err)
}
