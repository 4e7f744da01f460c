package worker

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
)

// Worker 周期性后台任务：首次延迟后立即执行一轮，之后按固定间隔串行执行。
// 一轮耗时超过间隔时下一轮顺延，同一任务不会并发。
// 单轮panic被捕获记日志，循环继续；ctx取消后退出
type Worker struct {
	name         string
	interval     time.Duration
	initialDelay time.Duration
	task         func(ctx context.Context) error
	logger       *logrus.Logger
}

// New 创建周期任务
func New(name string, interval, initialDelay time.Duration,
	task func(ctx context.Context) error, logger *logrus.Logger) *Worker {
	return &Worker{
		name:         name,
		interval:     interval,
		initialDelay: initialDelay,
		task:         task,
		logger:       logger,
	}
}

// Run 阻塞运行任务循环，ctx取消后返回。通常在独立goroutine中调用
func (w *Worker) Run(ctx context.Context) {
	w.logger.WithFields(logrus.Fields{
		"worker":   w.name,
		"interval": w.interval.String(),
		"delay":    w.initialDelay.String(),
	}).Info("worker starting")

	if w.initialDelay > 0 {
		select {
		case <-ctx.Done():
			w.logger.WithField("worker", w.name).Info("worker stopped before first run")
			return
		case <-time.After(w.initialDelay):
		}
	}

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.WithField("worker", w.name).Info("worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.WithFields(logrus.Fields{
				"worker": w.name,
				"panic":  r,
				"stack":  string(debug.Stack()),
			}).Error("worker cycle panicked")
		}
	}()

	start := time.Now()
	if err := w.task(ctx); err != nil {
		w.logger.WithFields(logrus.Fields{
			"worker":  w.name,
			"elapsed": time.Since(start).String(),
			"error":   err.Error(),
		}).Error("worker cycle failed")
		return
	}
	w.logger.WithFields(logrus.Fields{
		"worker":  w.name,
		"elapsed": time.Since(start).String(),
	}).Debug("worker cycle done")
}
