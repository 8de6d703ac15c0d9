package queue_test

import (
	"context"
	"fmt"
	"time"

	"github.com/ngominhtrint/queue"
)

// ExampleTaskQueue_AddChain demonstrates chained execution with only one import.
func ExampleTaskQueue_AddChain() {
	q := queue.NewTaskQueue("example", nil)
	defer q.Close()

	makeTask := func(name string) *queue.Task {
		return queue.NewNamedTask(name, func(ctx context.Context, t *queue.Task) error {
			fmt.Println(name)
			return nil
		})
	}

	done := make(chan struct{})
	q.AddChain(
		[]*queue.Task{makeTask("download"), makeTask("verify"), makeTask("install")},
		func() {
			fmt.Println("chain complete")
			close(done)
		},
	)

	<-done
	time.Sleep(10 * time.Millisecond) // Allow output to flush

	// Output:
	// download
	// verify
	// install
	// chain complete
}

// ExampleTask_Retry demonstrates manual retry of a failed task.
func ExampleTask_Retry() {
	q := queue.NewTaskQueue("example", nil)
	defer q.Close()

	attempted := make(chan int, 2)
	task := queue.NewNamedTask("flaky", func(ctx context.Context, t *queue.Task) error {
		attempted <- t.Attempt()
		if t.Attempt() == 1 {
			return fmt.Errorf("transient failure")
		}
		return nil
	})
	task.SetRetryMode(queue.RetryManual)
	task.SetMaxAttempts(2)
	q.Add(task)

	fmt.Printf("attempt %d failed\n", <-attempted)
	task.Retry()
	fmt.Printf("attempt %d succeeded\n", <-attempted)

	q.AwaitIdle(context.Background())
	fmt.Println(task.Outcome())

	// Output:
	// attempt 1 failed
	// attempt 2 succeeded
	// success
}
