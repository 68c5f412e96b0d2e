// Package testutil holds helpers shared by moodzy's package tests.
//
// Recorder captures whatever a component publishes and lets a test wait for
// it. StartPub binds an in-process ZeroMQ publisher on a free port and
// PublishUntil resends a message until a recorder sees the result, which
// covers ZeroMQ's subscription handshake. SequentialIDs and StepClock make
// registry output predictable.
//
//	rec := testutil.NewRecorder[feed.Event]()
//	pub, addr := testutil.StartPub(t)
//	// ... start a feed.Input with addr and rec as its publisher ...
//	ev := testutil.PublishUntil(t, pub, zmq4.NewMsg(payload), rec)
package testutil
