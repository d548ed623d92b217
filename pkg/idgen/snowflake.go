package idgen

import (
	"fmt"
	"sync"
	"time"
)

// ============================================================================
// 雪花算法 ID 生成器
// ============================================================================
//
// 用户ID、事件号：全局唯一、严格递增、不暴露注册量。
//
//   0 | 41位毫秒时间戳 | 10位机器ID | 12位序列号
//
// 【时钟回拨】
// 生成器记住上一次用过的毫秒 lastMs，系统时钟落后于 lastMs 时不跟着回退，
// 继续在 lastMs 上发号；这一毫秒的序列号用完就直接借用 lastMs+1。
// 因此同一个生成器发出的 ID 永远严格递增，回拨期间只是时间戳略微超前。
//
// ============================================================================

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Snowflake 单机 ID 生成器，并发安全
type Snowflake struct {
	mu       sync.Mutex
	workerID int64
	lastMs   int64
	sequence int64
	clock    func() int64 // 当前毫秒，测试里可替换
}

// New 创建生成器，超出范围的 workerID 取低 10 位
func New(workerID int64) *Snowflake {
	return &Snowflake{
		workerID: workerID & maxWorkerID,
		clock:    func() int64 { return time.Now().UnixMilli() },
	}
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// Init 初始化默认生成器，只有第一次调用生效
func Init(workerID int64) {
	once.Do(func() {
		defaultGenerator = New(workerID)
	})
}

// NextID 默认生成器的下一个ID，未初始化时使用 workerID = 1
func NextID() int64 {
	Init(1)
	return defaultGenerator.Generate()
}

// Generate 生成下一个ID
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.clock()
	if ms < s.lastMs {
		ms = s.lastMs
	}

	if ms == s.lastMs {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			ms = s.nextMillis()
		}
	} else {
		s.sequence = 0
	}
	s.lastMs = ms

	return ((ms - epoch) << timestampShift) | (s.workerID << workerIDShift) | s.sequence
}

// nextMillis lastMs 的序列号已用完，返回下一个可用毫秒
func (s *Snowflake) nextMillis() int64 {
	for {
		ms := s.clock()
		switch {
		case ms > s.lastMs:
			return ms
		case ms < s.lastMs:
			// 仍在回拨中，等不到真实时钟，借用下一毫秒
			return s.lastMs + 1
		}
	}
}

// NewUserID 生成用户ID
func NewUserID() int64 {
	return NextID()
}

// GenerateEventNo 生成事件号
// 格式：EVT + 年月日时分秒 + 雪花ID后8位，例如 EVT2024011514305212345678
func GenerateEventNo() string {
	id := NextID()
	return fmt.Sprintf("EVT%s%08d", time.Now().Format("20060102150405"), id%100000000)
}
