// Package badger 提供基于badger的证明请求审计存储
//
// 审计记录只包含请求的公开侧信息（请求哈希、客户端、结果、耗时），
// 私有输入不落盘。条目按配置的保留期自动过期。
package badger

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v3"

	"github.com/umbra-protocol/prover/internal/config"
	"github.com/umbra-protocol/prover/pkg/interfaces/infrastructure/log"
)

// Record 单次证明请求的审计记录
type Record struct {
	RequestHash string    `json:"requestHash"`
	ClientID    string    `json:"clientId"`
	Outcome     string    `json:"outcome"` // completed | cached | rejected | failed | timeout
	Error       string    `json:"error,omitempty"`
	DurationMs  int64     `json:"durationMs"`
	Timestamp   time.Time `json:"timestamp"`
}

// Stats 审计存储统计
type Stats struct {
	Records        int   `json:"records"`
	RetentionHours int64 `json:"retentionHours"`
}

// AuditStore badger审计存储
type AuditStore struct {
	logger    log.Logger
	db        *badger.DB
	retention time.Duration
	stopGC    chan struct{}
	stopOnce  sync.Once
}

// NewAuditStore 打开（或创建）审计数据库
func NewAuditStore(logger log.Logger, opts config.AuditOptions) (*AuditStore, error) {
	l := logger.With("module", "storage")

	dbOpts := badger.DefaultOptions(opts.Dir).
		WithSyncWrites(false). // 审计记录允许极端崩溃下丢失最后几条
		WithMemTableSize(16 << 20).
		WithBlockCacheSize(32 << 20).
		WithNumCompactors(2).
		WithLogger(&badgerLogger{logger: l})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("打开审计数据库失败: %w", err)
	}

	s := &AuditStore{
		logger:    l,
		db:        db,
		retention: opts.Retention,
		stopGC:    make(chan struct{}),
	}
	go s.gcLoop()
	return s, nil
}

// gcLoop 周期性回收badger的value log空间
// 过期的审计条目只有经过GC才真正释放磁盘
func (s *AuditStore) gcLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
				s.logger.Debugf("badger GC: %v", err)
			}
		case <-s.stopGC:
			return
		}
	}
}

// Append 写入一条审计记录
//
// 键 = "audit/" + requestHash + "/" + 纳秒时间戳：
// 同一请求哈希的多次提交（缓存命中、重放）各占一条记录。
func (s *AuditStore) Append(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("序列化审计记录失败: %w", err)
	}

	key := fmt.Sprintf("audit/%s/%d", rec.RequestHash, rec.Timestamp.UnixNano())
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), data).WithTTL(s.retention)
		return txn.SetEntry(entry)
	})
}

// ByRequestHash 返回某个请求哈希下的全部审计记录（时间升序）
func (s *AuditStore) ByRequestHash(requestHash string) ([]*Record, error) {
	prefix := []byte("audit/" + requestHash + "/")
	var records []*Record

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				records = append(records, &rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Stats 统计当前存储的审计记录数
// 全量遍历键（不取值），记录量受保留期约束，代价可控
func (s *AuditStore) Stats() (Stats, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.PrefetchValues = false
		it := txn.NewIterator(itOpts)
		defer it.Close()
		prefix := []byte("audit/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Records:        count,
		RetentionHours: int64(s.retention.Hours()),
	}, nil
}

// Close 关闭数据库
func (s *AuditStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopGC) })
	return s.db.Close()
}

// badgerLogger 将badger内部日志接入服务日志系统
// badger的INFO级别输出较啰嗦，统一降为Debug
type badgerLogger struct {
	logger log.Logger
}

func (b *badgerLogger) Errorf(format string, args ...interface{}) {
	b.logger.Errorf("badger: "+format, args...)
}

func (b *badgerLogger) Warningf(format string, args ...interface{}) {
	b.logger.Warnf("badger: "+format, args...)
}

func (b *badgerLogger) Infof(format string, args ...interface{}) {
	b.logger.Debugf("badger: "+format, args...)
}

func (b *badgerLogger) Debugf(format string, args ...interface{}) {
	b.logger.Debugf("badger: "+format, args...)
}
