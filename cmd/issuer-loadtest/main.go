// Command issuer-loadtest drives concurrent email code logins, racing code
// exchanges, and refresh rotations against a Redis-backed issuer.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	goIssuer "github.com/MrEthical07/goIssuer"
	"github.com/MrEthical07/goIssuer/sender"
)

const (
	clientID    = "loadtest"
	redirectURI = "https://loadtest.example.com/cb"
)

func main() {
	var (
		logins      = flag.Int("logins", 2000, "email code logins to run")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		racers      = flag.Int("racers", 8, "concurrent exchanges per code in the race phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt:", "redis key prefix")
	)
	flag.Parse()

	if *logins <= 0 || *concurrency <= 0 || *racers <= 0 {
		fmt.Fprintln(os.Stderr, "logins, concurrency, and racers must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	var inbox sync.Map
	iss, err := newIssuer(client, *prefix, sender.Func(func(_ context.Context, d sender.Delivery) error {
		inbox.Store(d.To, d.Code)
		return nil
	}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "build issuer: %v\n", err)
		os.Exit(1)
	}
	defer iss.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	codes := make([]string, *logins)
	loginPhase := runPhase(ctx, "login", *logins, *concurrency, func(i int) error {
		code, err := login(ctx, iss, &inbox, fmt.Sprintf("user-%d@loadtest.example.com", i))
		codes[i] = code
		return err
	})

	var (
		winners    int64
		violations int64
		refreshes  = make([]string, *logins)
	)
	racePhase := runPhase(ctx, "exchange-race", *logins, *concurrency, func(i int) error {
		if codes[i] == "" {
			return errors.New("no code")
		}
		var (
			wg  sync.WaitGroup
			won int64
		)
		for r := 0; r < *racers; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ts, err := iss.ExchangeCode(ctx, goIssuer.ExchangeRequest{Code: codes[i], ClientID: clientID, RedirectURI: redirectURI})
				if err == nil && atomic.AddInt64(&won, 1) == 1 {
					refreshes[i] = ts.RefreshToken
				}
			}()
		}
		wg.Wait()
		atomic.AddInt64(&winners, won)
		if won != 1 {
			atomic.AddInt64(&violations, 1)
			return fmt.Errorf("code %d redeemed %d times", i, won)
		}
		return nil
	})

	refreshPhase := runPhase(ctx, "refresh", *logins, *concurrency, func(i int) error {
		if refreshes[i] == "" {
			return errors.New("no refresh token")
		}
		_, err := iss.Refresh(ctx, refreshes[i], clientID)
		return err
	})

	report(os.Stdout, loginPhase, racePhase, refreshPhase)
	fmt.Printf("exchange winners=%d single-use violations=%d\n", winners, violations)
	if violations > 0 {
		os.Exit(1)
	}
}

func newIssuer(client redis.UniversalClient, prefix string, s sender.CodeSender) (*goIssuer.Issuer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	cfg := goIssuer.DefaultConfig()
	cfg.Issuer.URL = "https://issuer.loadtest.example.com"
	cfg.JWT.PrivateKey = priv
	cfg.Store.RedisPrefix = prefix
	cfg.Security.MaxCredentialAttempts = 0

	return goIssuer.New().
		WithConfig(cfg).
		WithRedis(client).
		WithSender(s).
		WithClientPolicy(goIssuer.StaticClients{clientID: {redirectURI}}).
		WithEmailCodeProvider("code").
		Build()
}

func login(ctx context.Context, iss *goIssuer.Issuer, inbox *sync.Map, email string) (string, error) {
	res, err := iss.Authorize(ctx, goIssuer.AuthorizeRequest{
		ClientID:     clientID,
		RedirectURI:  redirectURI,
		ResponseType: "code",
	})
	if err != nil {
		return "", err
	}
	if _, err := iss.SubmitCredential(ctx, res.RequestID, goIssuer.CredentialInput{Email: email}); err != nil {
		return "", err
	}
	otp, ok := inbox.Load(email)
	if !ok {
		return "", errors.New("code not delivered")
	}
	out, err := iss.SubmitCredential(ctx, res.RequestID, goIssuer.CredentialInput{Code: otp.(string)})
	if err != nil {
		return "", err
	}
	return out.Code, nil
}

// phase is the outcome of running one operation ops times.
type phase struct {
	name     string
	elapsed  time.Duration
	failures int64
	// latencies is sorted once the phase finished.
	latencies []time.Duration
}

// runPhase calls op for every index in [0, ops) with at most concurrency
// calls in flight. Failures are counted, not fatal.
func runPhase(ctx context.Context, name string, ops, concurrency int, op func(i int) error) *phase {
	p := &phase{name: name, latencies: make([]time.Duration, ops)}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	start := time.Now()
	for i := 0; i < ops; i++ {
		g.Go(func() error {
			t0 := time.Now()
			if err := op(i); err != nil {
				atomic.AddInt64(&p.failures, 1)
			}
			p.latencies[i] = time.Since(t0)
			return nil
		})
	}
	_ = g.Wait()
	p.elapsed = time.Since(start)

	slices.Sort(p.latencies)
	return p
}

// quantile returns the q-quantile (0 <= q <= 1) by nearest rank.
func (p *phase) quantile(q float64) time.Duration {
	n := len(p.latencies)
	if n == 0 {
		return 0
	}
	i := int(q * float64(n-1))
	return p.latencies[min(max(i, 0), n-1)]
}

func report(w io.Writer, phases ...*phase) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "phase\tops\tfailures\telapsed\tops/s\tp50\tp95\tp99\t")
	for _, p := range phases {
		rate := 0.0
		if p.elapsed > 0 {
			rate = float64(len(p.latencies)) / p.elapsed.Seconds()
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%.0f\t%s\t%s\t%s\t\n",
			p.name, len(p.latencies), p.failures,
			p.elapsed.Round(time.Millisecond), rate,
			p.quantile(0.50).Round(time.Microsecond),
			p.quantile(0.95).Round(time.Microsecond),
			p.quantile(0.99).Round(time.Microsecond),
		)
	}
	_ = tw.Flush()
}
