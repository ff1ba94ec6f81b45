// Command quadratic is the standalone expression-driven primality tool:
// it evaluates one or more arithmetic expressions (or every line of a
// file), reports whether each result is prime according to both
// internal/kernel's tests, and times each evaluation.
package main

import (
	"bufio"
	"context"
	"fmt"
	"math/big"
	"os"
	"runtime"
	"time"

	"github.com/spf13/pflag"

	"lnrc/internal/kernel"
	"lnrc/internal/sched"
)

const version = "lnrc-quadratic 1.0"

func main() {
	var (
		verbose  = pflag.BoolP("verbose", "v", false, "print both test results, not just agreement")
		selfTest = pflag.Bool("st", false, "run the internal self-test and exit")
		showVer  = pflag.Bool("version", false, "print version and exit")
		file     = pflag.StringP("file", "f", "", "evaluate every line of file instead of the command line")
	)
	pflag.Parse()

	if *showVer {
		fmt.Println(version)
		return
	}
	if *selfTest {
		if runSelfTest() {
			fmt.Println("self-test passed")
			return
		}
		os.Exit(1)
	}

	if *file != "" {
		primes, composites, err := evalFile(*file, *verbose)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		fmt.Printf("%d primes, %d composites\n", primes, composites)
		return
	}

	for _, expr := range pflag.Args() {
		if err := evalOne(expr, *verbose); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}
}

func evalOne(expr string, verbose bool) error {
	start := time.Now()
	v, err := evalExpr(expr)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	result, detail := classify(v, verbose)
	fmt.Printf("%s = %s  %s  (%.3fms)\n", expr, v.String(), result, float64(elapsed.Microseconds())/1000)
	if verbose {
		fmt.Println(detail)
	}
	return nil
}

// evalFile classifies every line of path through a sched.Pool; each
// submission runs at Normal priority, and no other request shares the pool.
func evalFile(path string, verbose bool) (primes, composites int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	task := func(ctx context.Context, expr string) sched.Outcome {
		v, err := evalExpr(expr)
		if err != nil {
			return sched.Outcome{Err: err}
		}
		isPrime, _ := classifyBool(v)
		return sched.Outcome{Prime: isPrime, Detail: v.String()}
	}
	pool := sched.NewPool("quadratic-file-scan", task, runtime.NumCPU(), 256)
	pool.Start()
	defer pool.Close()

	ctx := context.Background()
	type pending struct {
		line string
		out  chan sched.Outcome
	}
	var inflight []pending

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if isBlank(line) {
			continue
		}
		out := make(chan sched.Outcome, 1)
		inflight = append(inflight, pending{line: line, out: out})
		go func(line string, out chan<- sched.Outcome) {
			out <- pool.Submit(ctx, line, sched.Normal)
		}(line, out)
	}
	if err := sc.Err(); err != nil {
		return 0, 0, err
	}

	for _, p := range inflight {
		out := <-p.out
		if out.Err != nil {
			fmt.Fprintf(os.Stderr, "skipping %q: %v\n", p.line, out.Err)
			continue
		}
		if out.Prime {
			primes++
		} else {
			composites++
		}
		if verbose {
			fmt.Printf("%s  %s\n", p.line, tagFor(out.Prime))
		}
	}
	m := pool.Metrics()
	if verbose {
		fmt.Printf("scanned %d expressions, avg %.3fms/expr\n", m.Completed, m.RunMeanMs)
	}
	return primes, composites, sc.Err()
}

// classify renders a short result tag ("prime", "composite", or
// "DISAGREEMENT" when the two kernels differ — the counterexample this
// whole project searches for) plus a verbose detail line.
func classify(v *big.Int, verbose bool) (tag string, detail string) {
	mr, quad, ok := bothTests(v)
	if !ok {
		isPrime := v.ProbablyPrime(40)
		tag = tagFor(isPrime)
		detail = fmt.Sprintf("  (miller-rabin only, value outside the 61-bit kernel range: %v)", isPrime)
		return tag, detail
	}
	if mr != quad {
		return "DISAGREEMENT", fmt.Sprintf("  miller-rabin=%v quadratic=%v", mr, quad)
	}
	return tagFor(mr), fmt.Sprintf("  miller-rabin=%v quadratic=%v", mr, quad)
}

func classifyBool(v *big.Int) (isPrime bool, agree bool) {
	mr, quad, ok := bothTests(v)
	if !ok {
		return v.ProbablyPrime(40), true
	}
	return mr, mr == quad
}

func bothTests(v *big.Int) (mr, quad bool, ok bool) {
	if v.Sign() < 0 || !v.IsUint64() {
		return false, false, false
	}
	n := v.Uint64()
	if n>>61 != 0 {
		return false, false, false
	}
	return kernel.IsPrime(n), kernel.IsQuadraticPrime(n), true
}

func tagFor(prime bool) string {
	if prime {
		return "prime"
	}
	return "composite"
}

func runSelfTest() bool {
	v, err := evalExpr("2^16 + 1")
	if err != nil {
		return false
	}
	return v.Uint64() == 65537 && kernel.IsPrime(65537)
}
