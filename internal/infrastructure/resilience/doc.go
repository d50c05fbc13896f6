/*
Package resilience provides a circuit breaker for collaborators that can
disappear at runtime, such as the Redis cache store.

Once a breaker trips, calls fail fast with ErrCircuitOpen and the caller
degrades (a cache read becomes a miss) instead of waiting on timeouts.
After Timeout one probe is let through; enough successes close it again.

	Closed --[ReadyToTrip]--> Open --[Timeout]--> Half-Open --[MaxRequests successes]--> Closed
	                                                  |
	                                               failure --> Open

Expected outcomes can be excluded from the failure count with
IsSuccessful:

	breaker := resilience.New("redis", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
	})

	err := breaker.Do(func() (err error) {
		value, err = client.Get(ctx, key).Bytes()
		return err
	})
*/
package resilience
