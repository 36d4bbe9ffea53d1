package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/krishrathi1/kalasarthi-match/internal/db"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

// --- kv.go tests ---

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "weights:u1")).
		Return(mock.Result(mock.RedisBlobString(`{"semantic":0.4}`)))

	s := NewStoreForTest(c)
	data, err := s.Get(context.Background(), "weights:u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"semantic":0.4}` {
		t.Errorf("unexpected data: %s", data)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "missing")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestGet_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	_, err := s.Get(context.Background(), "k")
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %T", err)
	}
	if errors.Is(err, db.ErrKeyNotFound) {
		t.Error("network errors must not look like a missing key")
	}
}

func TestSet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetWithTTL_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SET" && cmd[1] == "k" && cmd[2] == "v" &&
				cmd[3] == "EX" && cmd[4] == "60"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.SetWithTTL(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDel_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "k")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.Del(context.Background(), "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestScan_MultiPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	first := true
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN"
		})).
		DoAndReturn(func(_ context.Context, _ rueidis.Completed) rueidis.RedisResult {
			if first {
				first = false
				return mock.Result(mock.RedisArray(
					mock.RedisInt64(17),
					mock.RedisArray(mock.RedisString("weights:a")),
				))
			}
			return mock.Result(mock.RedisArray(
				mock.RedisInt64(0),
				mock.RedisArray(mock.RedisString("weights:b")),
			))
		}).Times(2)

	s := NewStoreForTest(c)
	keys, err := s.Scan(context.Background(), "weights:*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "weights:a" || keys[1] != "weights:b" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

// --- json.go tests ---

func TestJSONGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("JSON.GET", "artisan:1", "$.embedding")).
		Return(mock.Result(mock.RedisString(`[[0.1,0.2]]`)))

	s := NewStoreForTest(c)
	data, err := s.JSONGet(context.Background(), "artisan:1", "$.embedding")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `[[0.1,0.2]]` {
		t.Errorf("unexpected data: %s", data)
	}
}

func TestJSONGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "JSON.GET"
		})).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	_, err := s.JSONGet(context.Background(), "artisan:x", "$")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestJSONMGet_AlignsMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("JSON.MGET", "artisan:a", "artisan:b", "artisan:c", "$")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString(`[{"id":"a"}]`),
			mock.RedisNil(),
			mock.RedisString(`[{"id":"c"}]`),
		)))

	s := NewStoreForTest(c)
	docs, err := s.JSONMGet(context.Background(), []string{"artisan:a", "artisan:b", "artisan:c"}, "$")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(docs))
	}
	if docs[1] != nil {
		t.Errorf("missing key should be nil, got %s", docs[1])
	}
	if string(docs[2]) != `[{"id":"c"}]` {
		t.Errorf("unexpected doc: %s", docs[2])
	}
}

func TestJSONMGet_Empty(t *testing.T) {
	s := &Store{}
	docs, err := s.JSONMGet(context.Background(), nil, "$")
	if err != nil || docs != nil {
		t.Fatalf("expected nil, nil; got %v, %v", docs, err)
	}
}

func TestJSONMGet_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "JSON.MGET"
		})).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	_, err := s.JSONMGet(context.Background(), []string{"a"}, "$")
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %v", err)
	}
}

// --- search.go tests ---

func TestSearchKNN_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "artisans" &&
				cmd[2] == "(@craft:{weaving | block\\ printing})=>[KNN 5 @vector $BLOB]"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("artisan:1"),
			mock.RedisArray(
				mock.RedisString("__vector_score"), mock.RedisString("0.1"),
				mock.RedisString("craft"), mock.RedisString("weaving"),
			),
			mock.RedisString("artisan:2"),
			mock.RedisArray(
				mock.RedisString("__vector_score"), mock.RedisString("1.4"),
			),
		)))

	s := NewStoreForTest(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "artisans",
		Vector:       []float32{0.1, 0.2},
		K:            5,
		TagFilters:   map[string][]string{"craft": {"weaving", "block printing"}},
		ReturnFields: []string{"craft"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(res.Entries))
	}
	if res.Entries[0].Score < 0.89 || res.Entries[0].Score > 0.91 {
		t.Errorf("expected similarity ~0.9, got %f", res.Entries[0].Score)
	}
	if res.Entries[1].Score != 0 {
		t.Errorf("distance > 1 should clamp to 0, got %f", res.Entries[1].Score)
	}
	if _, ok := res.Entries[0].Fields["__vector_score"]; ok {
		t.Error("__vector_score should be stripped from fields")
	}
	if res.Entries[0].Fields["craft"] != "weaving" {
		t.Errorf("unexpected fields: %v", res.Entries[0].Fields)
	}
}

func TestSearchKNN_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[2] == "*=>[KNN 10 @vector $BLOB]"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}, K: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(res.Entries))
	}
}

func TestSearchKNN_UnknownIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisError("idx: no such index")))

	s := NewStoreForTest(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}, K: 1})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	tests := []struct {
		name string
		q    db.KNNQuery
	}{
		{"no index", db.KNNQuery{Vector: []float32{0.1}, K: 10}},
		{"no vector", db.KNNQuery{IndexName: "idx", K: 10}},
		{"zero k", db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}}},
		{"bad field", db.KNNQuery{
			IndexName: "idx", Vector: []float32{0.1}, K: 1,
			TagFilters: map[string][]string{"bad field": {"x"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.SearchKNN(ctx, &tt.q); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBuildTagFilters(t *testing.T) {
	got, err := buildTagFilters(map[string][]string{
		"region": {"rajasthan"},
		"craft":  {"pottery", "terra-cotta"},
		"empty":  {},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `@craft:{pottery | terra\-cotta} @region:{rajasthan}`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if got, _ := buildTagFilters(nil); got != "" {
		t.Errorf("nil filters should render empty, got %q", got)
	}
}

func TestVectorToBytes(t *testing.T) {
	if b := vectorToBytes([]float32{1.0, 2.0}); len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
}

// --- index.go tests ---

func TestIndexInfo_Parses(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "artisans")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("index_name"), mock.RedisString("artisans"),
			mock.RedisString("attributes"), mock.RedisArray(
				mock.RedisArray(
					mock.RedisString("identifier"), mock.RedisString("craft"),
					mock.RedisString("type"), mock.RedisString("TAG"),
				),
				mock.RedisArray(
					mock.RedisString("identifier"), mock.RedisString("$.embedding"),
					mock.RedisString("type"), mock.RedisString("VECTOR"),
					mock.RedisString("dim"), mock.RedisInt64(768),
				),
			),
			mock.RedisString("num_docs"), mock.RedisString("150000"),
			mock.RedisString("hash_indexing_failures"), mock.RedisInt64(3),
		)))

	s := NewStoreForTest(c)
	info, err := s.IndexInfo(context.Background(), "artisans")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.NumDocs != 150000 {
		t.Errorf("NumDocs = %d", info.NumDocs)
	}
	if info.IndexingFailures != 3 {
		t.Errorf("IndexingFailures = %d", info.IndexingFailures)
	}
	if info.Dimensions != 768 {
		t.Errorf("Dimensions = %d", info.Dimensions)
	}
}

func TestIndexInfo_Unknown(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "missing")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	_, err := s.IndexInfo(context.Background(), "missing")
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIsRedisErr(t *testing.T) {
	err := mock.Result(mock.RedisError("ERR Unknown Index Name")).Error()
	if !isRedisErr(err, "unknown index name") {
		t.Error("expected case-insensitive match")
	}
	if isRedisErr(errors.New("unknown index name"), "unknown") {
		t.Error("non-redis errors must not match")
	}
	if isRedisErr(err, strings.Repeat("x", 50)) {
		t.Error("unexpected match")
	}
}

// --- helpers ---

// isDBError is a test helper for checking wrapped db.Error.
func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}
