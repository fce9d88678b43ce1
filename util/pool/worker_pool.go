package pool

import (
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"yunsou/util/log"
)

// Task 表示一个返回任意结果的任务
type Task func() interface{}

// ExecuteBatch 以指定并发上限批量执行任务，等待全部完成。
// 结果按完成顺序返回，数量与任务数一致；单个任务panic被就地吸收，
// 该任务的结果记为nil，不影响其余任务
func ExecuteBatch(tasks []Task, maxConcurrency int) []interface{} {
	if len(tasks) == 0 {
		return []interface{}{}
	}

	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	if maxConcurrency > len(tasks) {
		maxConcurrency = len(tasks)
	}

	p, err := ants.NewPool(maxConcurrency)
	if err != nil {
		// 池创建失败时退化为串行执行，保证任务仍然全部跑完
		log.Warnf("创建协程池失败，退化为串行执行: %v", err)
		results := make([]interface{}, 0, len(tasks))
		for _, task := range tasks {
			results = append(results, runTask(task))
		}
		return results
	}
	defer p.Release()

	resultChan := make(chan interface{}, len(tasks))
	var wg sync.WaitGroup

	// 池满时Submit阻塞，任务按入参顺序随空位依次启动
	for _, task := range tasks {
		task := task
		wg.Add(1)
		submitErr := p.Submit(func() {
			defer wg.Done()
			resultChan <- runTask(task)
		})
		if submitErr != nil {
			wg.Done()
			resultChan <- nil
		}
	}

	wg.Wait()
	close(resultChan)

	results := make([]interface{}, 0, len(tasks))
	for result := range resultChan {
		results = append(results, result)
	}
	return results
}

// ExecuteBatchWithTimeout 在ExecuteBatch基础上给每个任务套上独立超时
func ExecuteBatchWithTimeout(tasks []Task, maxConcurrency int, timeout time.Duration) []interface{} {
	wrapped := make([]Task, len(tasks))
	for i, task := range tasks {
		wrapped[i] = WithTimeout(task, timeout)
	}
	return ExecuteBatch(wrapped, maxConcurrency)
}

// WithTimeout 包装任务使其最多运行timeout。
// 超时后返回nil并放弃等待，原任务在后台自行跑完后静默退出
func WithTimeout(task Task, timeout time.Duration) Task {
	if timeout <= 0 {
		return task
	}

	return func() interface{} {
		done := make(chan interface{}, 1)
		go func() {
			done <- runTask(task)
		}()

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case result := <-done:
			return result
		case <-timer.C:
			return nil
		}
	}
}

// runTask 执行任务并吸收panic
func runTask(task Task) (result interface{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("任务panic已隔离: %v", r)
			result = nil
		}
	}()
	return task()
}
