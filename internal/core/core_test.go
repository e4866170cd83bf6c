// AngelaMos | 2026
// core_test.go

package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/bibliotech/internal/config"
)

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestJSONError(t *testing.T) {
	t.Run("wrapped app error keeps status and code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := fmt.Errorf("borrow: %w", LoanExpiredError())

		JSONError(rec, err)

		assert.Equal(t, http.StatusGone, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		resp := decodeResponse(t, rec)
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "LOAN_EXPIRED", resp.Error.Code)
		assert.Equal(t, "loan has expired", resp.Error.Message)
	})

	t.Run("plain error becomes internal error", func(t *testing.T) {
		rec := httptest.NewRecorder()

		JSONError(rec, errors.New("connection reset"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
		assert.NotContains(t, resp.Error.Message, "connection reset")
	})

	t.Run("conflict helper uses precondition code", func(t *testing.T) {
		rec := httptest.NewRecorder()

		Conflict(rec, "document is not available")

		assert.Equal(t, http.StatusConflict, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "PRECONDITION_FAILED", resp.Error.Code)
	})
}

func TestAppErrorChain(t *testing.T) {
	err := fmt.Errorf("access loan: %w", LoanExpiredError())

	assert.True(t, errors.Is(err, ErrLoanExpired))
	assert.True(t, IsAppError(err))

	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusGone, appErr.StatusCode)
	assert.Equal(t, "loan has expired: loan expired", appErr.Error())

	_, ok = AsAppError(errors.New("plain"))
	assert.False(t, ok)

	assert.Equal(t, "authentication required", UnauthorizedError("").Message)
	assert.Equal(t, "insufficient permissions", ForbiddenError("").Message)
	assert.Equal(t, "document not found", NotFoundError("document").Message)
}

func TestPaginated(t *testing.T) {
	tests := []struct {
		name      string
		pageSize  int
		total     int
		wantPages int
	}{
		{"exact", 10, 30, 3},
		{"remainder", 10, 31, 4},
		{"empty", 10, 0, 0},
		{"zero page size", 0, 12, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			Paginated(rec, []string{}, 1, tt.pageSize, tt.total)

			assert.Equal(t, http.StatusOK, rec.Code)
			resp := decodeResponse(t, rec)
			assert.True(t, resp.Success)
			require.NotNil(t, resp.Meta)
			assert.Equal(t, tt.total, resp.Meta.Total)
			assert.Equal(t, tt.wantPages, resp.Meta.TotalPages)
		})
	}
}

func TestFormatValidationError(t *testing.T) {
	type registration struct {
		Username string `validate:"required,min=3"`
		Email    string `validate:"required,email"`
		Plan     string `validate:"oneof=monthly annual"`
	}

	v := validator.New()
	err := v.Struct(registration{Username: "ab", Email: "nope", Plan: "weekly"})
	require.Error(t, err)

	msg := FormatValidationError(err)
	assert.Contains(t, msg, "username must be at least 3 characters")
	assert.Contains(t, msg, "email must be a valid email")
	assert.Contains(t, msg, "plan must be one of: monthly annual")
	assert.Equal(t, 3, strings.Count(msg, ";")+1)

	assert.Equal(t, "invalid request", FormatValidationError(errors.New("x")))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := VerifyPassword("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("battery staple", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyPassword("x", "not-a-hash")
	assert.Error(t, err)

	t.Run("timing safe with missing hash", func(t *testing.T) {
		ok, rehash, err := VerifyPasswordTimingSafe("anything", nil)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, rehash)

		empty := ""
		ok, _, err = VerifyPasswordTimingSafe("anything", &empty)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("outdated settings are upgraded", func(t *testing.T) {
		weak := argonParams{memory: 8 * 1024, time: 1, threads: 1, keyLen: 32}
		salt := []byte("0123456789abcdef")
		old := weak.encode(salt, weak.key("correct horse", salt))

		ok, rehash, err := VerifyPasswordWithRehash("correct horse", old)
		require.NoError(t, err)
		assert.True(t, ok)
		require.NotEmpty(t, rehash)
		assert.Contains(t, rehash, "m=65536,t=1,p=4")

		ok, rehash, err = VerifyPasswordWithRehash("wrong", old)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, rehash)
	})

	t.Run("timing safe with stored hash", func(t *testing.T) {
		ok, rehash, err := VerifyPasswordTimingSafe("correct horse", &hash)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, rehash)
	})
}

func TestTokenHashing(t *testing.T) {
	token, err := GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	other, err := GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)

	hash := HashToken(token)
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashToken(token))
	assert.NotEqual(t, hash, HashToken(other))
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"page_size=50", 50},
		{"page_size=abc", 20},
		{"page_size=-3", -3},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/documents?"+tt.query, nil)
			assert.Equal(t, tt.want, QueryInt(r, "page_size", 20))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Title string `json:"title"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"Germinal"}`))
	require.NoError(t, DecodeJSON(r, &dst))
	assert.Equal(t, "Germinal", dst.Title)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":`))
	assert.Error(t, DecodeJSON(r, &dst))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, EscapeLike("100%"))
	assert.Equal(t, `a\_b`, EscapeLike("a_b"))
	assert.Equal(t, `c:\\d`, EscapeLike(`c:\d`))
	assert.Equal(t, "plain", EscapeLike("plain"))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("memory: %w", ErrDuplicateKey)))
	assert.False(t, IsUniqueViolation(errors.New("other")))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(sql.ErrNoRows))
	assert.True(t, IsNoRows(fmt.Errorf("get loan: %w", sql.ErrNoRows)))
	assert.True(t, IsNoRows(&pgconn.PgError{Code: "22P02"}))
	assert.False(t, IsNoRows(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsNoRows(errors.New("connection refused")))
	assert.False(t, IsNoRows(nil))
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions(config.RedisConfig{
		URL:             "redis://localhost:6379/2",
		PoolSize:        12,
		MinIdleConns:    3,
		PoolTimeout:     10 * time.Second,
		ConnMaxIdleTime: time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 12, opts.PoolSize)
	assert.Equal(t, 3, opts.MinIdleConns)
	assert.Equal(t, 10*time.Second, opts.PoolTimeout)
	assert.Equal(t, time.Minute, opts.ConnMaxIdleTime)

	_, err = redisOptions(config.RedisConfig{URL: "http://nope"})
	assert.Error(t, err)
}

func TestRedis_NilClient(t *testing.T) {
	var r *Redis

	assert.NoError(t, r.Close())
	assert.ErrorIs(t, r.Ping(context.Background()), ErrUnavailable)
	assert.NotNil(t, r.PoolStats())
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 0.5, want: "TraceIDRatioBased{0.5}"},
		{rate: 0, want: "TraceIDRatioBased{0.1}"},
		{rate: -1, want: "TraceIDRatioBased{0.1}"},
		{rate: 2, want: "TraceIDRatioBased{0.1}"},
		{rate: 1, want: "AlwaysOnSampler"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.rate), func(t *testing.T) {
			desc := sampler(tt.rate).Description()
			assert.True(t, strings.HasPrefix(desc, "ParentBased{"))
			assert.Contains(t, desc, "root:"+tt.want)
		})
	}
}

func TestTelemetry_Disabled(t *testing.T) {
	tel, err := NewTelemetry(
		context.Background(),
		config.OtelConfig{Enabled: false, Endpoint: "collector:4317"},
		config.AppConfig{Version: "test"},
	)
	require.NoError(t, err)
	require.NoError(t, tel.Shutdown(context.Background()))

	var none *Telemetry
	assert.NoError(t, none.Shutdown(context.Background()))

	assert.Empty(t, TraceIDFromContext(context.Background()))
	assert.Len(t, exporterOptions(config.OtelConfig{Endpoint: "collector:4317"}), 3)
}

type failingBegin struct{}

func (failingBegin) BeginTxx(context.Context, *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, sql.ErrConnDone
}

func TestDatabaseHelpers(t *testing.T) {
	t.Run("jitter stays within a seventh", func(t *testing.T) {
		assert.Zero(t, jitteredDuration(0))
		assert.Equal(t, time.Nanosecond, jitteredDuration(time.Nanosecond))

		for range 50 {
			d := jitteredDuration(time.Hour)
			assert.GreaterOrEqual(t, d, time.Hour)
			assert.Less(t, d, time.Hour+time.Hour/7)
		}
	})

	t.Run("begin failure skips the callback", func(t *testing.T) {
		called := false
		err := runTx(context.Background(), failingBegin{}, nil, func(*sqlx.Tx) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.Contains(t, err.Error(), "begin transaction")
		assert.False(t, called)
	})

	t.Run("unopened database", func(t *testing.T) {
		var db *Database
		assert.ErrorIs(t, db.Ping(context.Background()), ErrUnavailable)
		assert.NoError(t, db.Close())
	})
}

func TestNewLogger(t *testing.T) {
	var buf strings.Builder

	logger := NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf, false)
	logger.Info("hidden")
	logger.Warn("overdue sweep", "loans", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"overdue sweep"`)
	assert.Contains(t, out, `"loans":3`)

	buf.Reset()
	logger = NewLogger(config.LogConfig{Level: "verbose", Format: "text"}, &buf, false)
	logger.Debug("dropped")
	logger.Info("kept")

	out = buf.String()
	assert.NotContains(t, out, "dropped", "unknown level falls back to info")
	assert.Contains(t, out, "msg=kept")
}
