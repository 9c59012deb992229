//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/berthplan/core/engine"
	"github.com/kilianp07/berthplan/core/feasibility"
	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/schedule"
	"github.com/kilianp07/berthplan/core/solver"
	"github.com/kilianp07/berthplan/infra/metrics"
	"github.com/kilianp07/berthplan/infra/mqtt"
)

const (
	influxOrg    = "e2e_org"
	influxBucket = "e2e_bucket"
	influxToken  = "e2e-token"
)

// junitReport is a minimal representation of a JUnit XML report. The E2E
// suite writes such a report so CI systems can display the results.
type junitReport struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string  `xml:"name,attr"`
	Failure *string `xml:"failure,omitempty"`
	Time    float64 `xml:"time,attr"`
}

// writeJUnit writes the provided report to the given path.
func writeJUnit(path string, rep junitReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	return enc.Encode(rep)
}

// startInflux starts an InfluxDB 2.7 container initialised with the e2e
// organisation, bucket and token.
func startInflux(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	url := fmt.Sprintf("http://%s:%s", host, port.Port())
	return cont, url
}

// startMosquitto spins up a Mosquitto broker accepting anonymous clients.
func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "1883")
	return cont, fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

// Test_E2E_ClosureOverMQTT registers a berth and a vessel, plans, then
// publishes a closure on the events topic and waits for the rescheduled
// update on the updates topic. Committed updates must reach InfluxDB.
func Test_E2E_ClosureOverMQTT(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	influxCont, influxURL := startInflux(ctx, t)
	if influxCont != nil {
		defer influxCont.Terminate(ctx) //nolint:errcheck
	}
	mqttCont, brokerURL := startMosquitto(ctx, t)
	if mqttCont != nil {
		defer mqttCont.Terminate(ctx) //nolint:errcheck
	}
	t.Logf("InfluxDB started at %s", influxURL)
	t.Logf("Mosquitto started at %s", brokerURL)

	reader := newScheduleReader(influxURL, influxOrg, influxBucket, influxToken)
	defer reader.Close()

	// Engine wired to the real sink and broker.
	checker := feasibility.Checker{}
	eng, err := engine.New(schedule.NewStore(checker, nil), solver.New(checker, nil, solver.Config{}, nil), engine.Config{}, nil)
	require.NoError(t, err)
	sink := metrics.NewInfluxSink(influxURL, influxToken, influxOrg, influxBucket)
	defer sink.Close()
	eng.SetMetrics(sink)
	client, err := mqtt.NewPahoClient(mqtt.Config{Broker: brokerURL, ClientID: "berthplan-e2e"})
	require.NoError(t, err)
	defer client.Disconnect()
	eng.SetNotifier(client)

	// Observer on the updates topic.
	updates := make(chan engine.Summary, 8)
	obs := paho.NewClient(paho.NewClientOptions().AddBroker(brokerURL).SetClientID("e2e-observer"))
	if tok := obs.Connect(); tok.Wait() && tok.Error() != nil {
		t.Fatalf("observer connect: %v", tok.Error())
	}
	defer obs.Disconnect(250)
	tok := obs.Subscribe(mqtt.DefaultUpdatesTopic, 1, func(_ paho.Client, m paho.Message) {
		var s engine.Summary
		if err := json.Unmarshal(m.Payload(), &s); err == nil {
			updates <- s
		}
	})
	require.True(t, tok.WaitTimeout(10*time.Second))
	require.NoError(t, tok.Error())

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go eng.Run(runCtx, client.Events())

	t0 := time.Now().Add(time.Hour).Truncate(time.Minute)
	require.NoError(t, eng.RegisterBerth(ctx, model.Berth{ID: "B1", MaxLengthM: 200, MaxDraftM: 10, Categories: []string{"bulk"}}))
	_, err = eng.RegisterVessel(ctx, model.VesselInput{ID: "V1", LengthM: 150, DraftM: 8, Category: "bulk", ETA: t0, ServiceHours: 4})
	require.NoError(t, err)
	_, err = eng.Plan(ctx)
	require.NoError(t, err)

	select {
	case s := <-updates:
		assert.Equal(t, engine.TriggerPlan, s.Trigger)
	case <-time.After(15 * time.Second):
		t.Fatal("no plan update received")
	}

	closure := fmt.Sprintf(`{"berth_id":"B1","window":{"start":%q,"end":%q}}`,
		t0.Add(time.Hour).Format(time.RFC3339), t0.Add(3*time.Hour).Format(time.RFC3339))
	pub := obs.Publish("berth/events/berth_closed", 1, false, closure)
	require.True(t, pub.WaitTimeout(10*time.Second))

	select {
	case s := <-updates:
		assert.Equal(t, "berth_closed", s.Trigger)
		require.Len(t, s.Placed, 1)
		assert.True(t, s.Placed[0].Window.Start.Equal(t0.Add(3*time.Hour)))
	case <-time.After(15 * time.Second):
		t.Fatal("no closure update received")
	}

	triggers, err := reader.Triggers(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{engine.TriggerPlan, "berth_closed"}, triggers)

	starts, err := reader.Starts(ctx, "V1", 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, starts["B1"], 2)
	assert.True(t, starts["B1"][0].Equal(t0), "planned at arrival")
	assert.True(t, starts["B1"][1].Equal(t0.Add(3*time.Hour)), "pushed past the closure")

	dir := t.TempDir()
	rep := junitReport{Name: "e2e", Tests: 1, Cases: []junitTestCase{{Name: t.Name(), Time: time.Since(start).Seconds()}}}
	if err := writeJUnit(filepath.Join(dir, "e2e.xml"), rep); err != nil {
		t.Logf("write junit: %v", err)
	}
}
