// Package queue provides a bounded, joinable FIFO queue for handing work
// between goroutines.
//
// A Queue tracks every value put into it as unfinished until a consumer
// acknowledges it with TaskDone. Join blocks until all values have been
// acknowledged, which lets a producer wait for a stage to finish its work
// without knowing how many consumers are attached.
//
//	q := queue.New[int](100)
//	go func() {
//	    for {
//	        v, err := q.Get(ctx)
//	        if err != nil {
//	            return
//	        }
//	        process(v)
//	        q.TaskDone()
//	    }
//	}()
//	q.Put(ctx, 1)
//	q.Join(ctx)
package queue
