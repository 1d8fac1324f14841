/*
Package events provides the in-memory broker through which gingo announces
pod and cluster lifecycle changes.

Publishers (the ops executor, the controller and the reconciler) never block
on delivery: Publish enqueues into a buffered channel and a single goroutine
fans events out to subscriber channels. Slow subscribers lose events rather
than slowing down a check cycle.

	ops / controller / reconciler
	            │ Publish
	            ▼
	    eventCh (buffer 100)
	            │ run loop
	            ▼
	  subscriber channels (buffer 50 each)

# Event Types

	pod.added             a pod was created and appended to its cluster
	pod.removed           a pod was terminated and dropped from its cluster
	pod.restarted         a pod was restarted
	cluster.cycle         a check cycle finished (Metadata: aggregate, usable)
	cluster.reconfigured  SetClusterConfigs applied a new cluster set

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	go func() {
		for ev := range sub {
			logger.Info().Str("type", string(ev.Type)).Msg(ev.Message)
		}
	}()

A nil *Broker is valid and discards every event, so components can be built
without one in tests.
*/
package events
