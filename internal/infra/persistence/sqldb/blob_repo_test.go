package sqldb

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/qinglan-dev/qinglan-app/internal/app/bootstrap"
	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := bootstrap.NewBootstrapper(db, "sqlite3").InitializeDatabase(); err != nil {
		t.Fatalf("初始化测试 schema 失败: %v", err)
	}
	return db
}

func testBlob(hash string) *model.ContentBlob {
	return &model.ContentBlob{
		Hash:     hash,
		URL:      hash + "/original.png",
		Size:     42,
		MimeType: "image/png",
	}
}

func TestCreateOrIncrementRef_重复登记累加引用(t *testing.T) {
	repo := NewSQLBlobRepository(newTestDB(t), "sqlite3")
	ctx := context.Background()

	first := testBlob("aaaa")
	isNew, err := repo.CreateOrIncrementRef(ctx, first)
	if err != nil {
		t.Fatalf("首次登记失败: %v", err)
	}
	if !isNew || first.RefCount != 1 {
		t.Fatalf("首次登记应为新建且 ref_count=1, got isNew=%v refCount=%d", isNew, first.RefCount)
	}

	second := testBlob("aaaa")
	isNew, err = repo.CreateOrIncrementRef(ctx, second)
	if err != nil {
		t.Fatalf("二次登记失败: %v", err)
	}
	if isNew || second.RefCount != 2 {
		t.Fatalf("二次登记应累加引用, got isNew=%v refCount=%d", isNew, second.RefCount)
	}
	if second.ID != first.ID {
		t.Errorf("同一哈希不应产生两行: %d vs %d", first.ID, second.ID)
	}
}

func TestCreateOrIncrementRef_并发登记恰好一次新建(t *testing.T) {
	repo := NewSQLBlobRepository(newTestDB(t), "sqlite3")
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	var newCount int

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, err := repo.CreateOrIncrementRef(ctx, testBlob("bbbb"))
			if err != nil {
				t.Errorf("并发登记失败: %v", err)
				return
			}
			if isNew {
				mu.Lock()
				newCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if newCount != 1 {
		t.Errorf("并发登记应恰好一次 isNew=true, got %d", newCount)
	}

	stored, err := repo.FindByHash(ctx, "bbbb")
	if err != nil {
		t.Fatalf("回读失败: %v", err)
	}
	if stored == nil || stored.RefCount != workers {
		t.Errorf("引用计数应为 %d, got %+v", workers, stored)
	}
}

func TestMysqlUpsertInserted_影响行数判定(t *testing.T) {
	// ON DUPLICATE KEY UPDATE: 插入影响 1 行，更新影响 2 行。
	// isNew 不能取自 upsert 后回读的 ref_count——两个并发的
	// 相同登记回读时可能都看到 ref_count=2，导致双方都误判为重复。
	cases := []struct {
		name         string
		rowsAffected int64
		want         bool
	}{
		{"插入新行", 1, true},
		{"更新已有行", 2, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := mysqlUpsertInserted(c.rowsAffected); got != c.want {
				t.Errorf("rowsAffected=%d: got %v, want %v", c.rowsAffected, got, c.want)
			}
		})
	}
}
