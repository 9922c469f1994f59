package service

import (
	"math"
	"time"

	"github.com/yuqie6/torii/internal/schema"
)

// SM-2 调度参数
const (
	// 质量分下限 / 上限
	MinQuality = 0
	MaxQuality = 5
	// 质量 >= 3 视为记住（边界含 3）
	passQuality = 3
	// ease factor 下限，保证困难条目不会退化到无限次 1 天间隔
	minEaseFactor = 1.3
	// 掌握门槛：间隔与 ease 需同时满足
	masteryInterval   = 21
	masteryEaseFactor = 2.5
)

// CardState SM-2 调度的纯状态输入/输出
type CardState struct {
	Status      schema.CardStatus
	Interval    int // 天
	EaseFactor  float64
	Repetitions int
}

// NextState 计算一次复习后的卡片状态，纯函数、无 I/O
//
// 质量 >= 3：repetitions+1；new→learning 间隔 1 天，learning 满 2 次连续成功
// 晋升 review（间隔重置为 1 天），否则 interval = round(interval * ease)；
// ease 按 SM-2 公式调整并钳在 1.3。
// 质量 < 3：repetitions 清零、间隔 1 天、无条件回到 learning（已掌握的卡片
// 同样降级）；ease 不动，只有成功回忆才调整 ease。
// 间隔 >= 21 天且 ease >= 2.5 时晋升 mastered，与分支无关。
func NextState(s CardState, quality int) CardState {
	next := s

	if quality >= passQuality {
		next.Repetitions++

		switch {
		case s.Status == schema.StatusNew:
			next.Status = schema.StatusLearning
			next.Interval = 1
		case s.Status == schema.StatusLearning && next.Repetitions >= 2:
			next.Status = schema.StatusReview
			next.Interval = 1
		default:
			next.Interval = int(math.Round(float64(s.Interval) * s.EaseFactor))
		}

		next.EaseFactor = s.EaseFactor + (0.1 - float64(5-quality)*(0.08+float64(5-quality)*0.02))
		if next.EaseFactor < minEaseFactor {
			next.EaseFactor = minEaseFactor
		}
	} else {
		next.Repetitions = 0
		next.Status = schema.StatusLearning
		next.Interval = 1
	}

	if next.Interval >= masteryInterval && next.EaseFactor >= masteryEaseFactor {
		next.Status = schema.StatusMastered
	}

	return next
}

// ApplySchedule 把调度结果写到卡片上并盖时间戳
func ApplySchedule(card *schema.ReviewCard, quality int, now time.Time) {
	next := NextState(CardState{
		Status:      card.Status,
		Interval:    card.Interval,
		EaseFactor:  card.EaseFactor,
		Repetitions: card.Repetitions,
	}, quality)

	card.Status = next.Status
	card.Interval = next.Interval
	card.EaseFactor = next.EaseFactor
	card.Repetitions = next.Repetitions

	if quality >= passQuality {
		card.CorrectCount++
	} else {
		card.IncorrectCount++
	}

	t := now
	card.LastReviewAt = &t
	card.NextReviewAt = now.AddDate(0, 0, next.Interval)
}

// IsPass 质量分是否算记住
func IsPass(quality int) bool {
	return quality >= passQuality
}

// ValidQuality 质量分是否在 [0,5] 内；越界直接拒绝，不做钳位
func ValidQuality(quality int) bool {
	return quality >= MinQuality && quality <= MaxQuality
}
