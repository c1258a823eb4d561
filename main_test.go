package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"mailbox/config"
	"mailbox/image"
	"mailbox/journal"
	"mailbox/shmem"
)

func testConfig(messages int) config.Config {
	cfg := config.Default()
	cfg.Messages = messages
	cfg.HotWindowMs = 50
	return cfg
}

func runSim(t *testing.T, cfg config.Config, img *image.Image, j *journal.Journal) report {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rep, err := simulate(ctx, cfg, img, j)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	return rep
}

func TestSimulateExchangesEverything(t *testing.T) {
	g := NewWithT(t)
	rep := runSim(t, testConfig(100), image.New(), nil)

	for _, s := range []sideReport{rep.Master, rep.Slave} {
		g.Expect(s.Received).To(BeEquivalentTo(200))
		g.Expect(s.Sent).To(BeEquivalentTo(200))
		g.Expect(s.Served).To(BeEquivalentTo(200))
		g.Expect(s.Progress).To(BeNumerically(">", 0))
	}
	g.Expect(rep.Snapshot.MasterStatus).To(Equal("READY"))
	g.Expect(rep.Snapshot.SlaveStatus).To(Equal("READY"))
	for _, q := range rep.Snapshot.Queues {
		g.Expect(q.Len).To(BeZero(), q.Name)
	}
}

func TestSimulateNoTraffic(t *testing.T) {
	g := NewWithT(t)
	rep := runSim(t, testConfig(0), image.New(), nil)

	g.Expect(rep.Master.Sent).To(BeZero())
	g.Expect(rep.Slave.Sent).To(BeZero())
}

func TestSimulateResetResendsLostRequests(t *testing.T) {
	g := NewWithT(t)
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	g.Expect(err).NotTo(HaveOccurred())
	defer j.Close()
	first := j.Session()

	cfg := testConfig(60)
	cfg.Reset = true
	rep := runSim(t, cfg, image.New(), j)

	// Retries may be served twice, but every request is answered once.
	for _, s := range []sideReport{rep.Master, rep.Slave} {
		g.Expect(s.Received).To(BeEquivalentTo(120))
		g.Expect(s.Sent).To(BeNumerically(">=", 120))
		g.Expect(s.Served).To(BeNumerically(">=", 120))
	}
	g.Expect(rep.Snapshot.MasterStatus).To(Equal("READY"))
	g.Expect(rep.Snapshot.SlaveStatus).To(Equal("READY"))

	g.Expect(j.Session()).NotTo(Equal(first))
	before, err := j.Count(first)
	g.Expect(err).NotTo(HaveOccurred())
	after, err := j.Count(j.Session())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(before).To(BeNumerically(">", 0))
	g.Expect(after).To(BeNumerically(">", 0))
	g.Expect(before + after).To(BeNumerically(">=", 4*120))
}

func TestSimulateOverMappedRegion(t *testing.T) {
	g := NewWithT(t)
	r, err := shmem.Map(filepath.Join(t.TempDir(), "mbox"))
	g.Expect(err).NotTo(HaveOccurred())
	defer r.Close()
	img, err := r.Image()
	g.Expect(err).NotTo(HaveOccurred())

	rep := runSim(t, testConfig(40), img, nil)
	g.Expect(rep.Master.Received).To(BeEquivalentTo(80))
	g.Expect(rep.Slave.Received).To(BeEquivalentTo(80))

	size, version := img.Header()
	g.Expect(size).NotTo(BeZero())
	g.Expect(version).NotTo(BeZero())
}

func TestSimulateReusesRegionFromEarlierRun(t *testing.T) {
	g := NewWithT(t)
	path := filepath.Join(t.TempDir(), "mbox")

	for run := 0; run < 2; run++ {
		r, err := shmem.Map(path)
		g.Expect(err).NotTo(HaveOccurred())
		img, err := r.Image()
		g.Expect(err).NotTo(HaveOccurred())
		if run == 1 {
			g.Expect(img.MasterStatus()).To(Equal(image.MasterReady), "region left by the first run")
			g.Expect(img.SlaveStatus()).To(Equal(image.SlaveReady))
		}

		rep := runSim(t, testConfig(20), img, nil)
		g.Expect(rep.Master.Received).To(BeEquivalentTo(40), "run %d", run)
		g.Expect(rep.Slave.Received).To(BeEquivalentTo(40), "run %d", run)
		g.Expect(r.Close()).To(Succeed())
	}
}

func TestApplyFlagsOverridesOnlySetValues(t *testing.T) {
	g := NewWithT(t)
	cfg := config.Default()
	cfg.Journal = "from-file.db"

	applyFlags(&cfg, "/dev/shm/mbox", -1, true, "", ":9100", 2)

	g.Expect(cfg.Region).To(Equal("/dev/shm/mbox"))
	g.Expect(cfg.Messages).To(Equal(config.Default().Messages))
	g.Expect(cfg.Reset).To(BeTrue())
	g.Expect(cfg.Journal).To(Equal("from-file.db"))
	g.Expect(cfg.MetricsAddr).To(Equal(":9100"))
	g.Expect(cfg.Verbosity).To(Equal(2))
}
