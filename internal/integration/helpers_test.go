//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("incident-geocode-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// geoObject is one canned Yandex answer.
type geoObject struct {
	name, description, pos, text string
}

func (g geoObject) json() string {
	return fmt.Sprintf(`{"GeoObject":{"name":%q,"description":%q,"Point":{"pos":%q},`+
		`"metaDataProperty":{"GeocoderMetaData":{"text":%q,"kind":"house","precision":"exact"}}}}`,
		g.name, g.description, g.pos, g.text)
}

// fakeYandex serves canned answers keyed by a lower-case substring of the
// geocode parameter. Unmatched queries get an empty collection.
func fakeYandex(t *testing.T, answers map[string]geoObject) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := strings.ToLower(r.URL.Query().Get("geocode"))
		var members []string
		for key, obj := range answers {
			if strings.Contains(q, key) {
				members = append(members, obj.json())
			}
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"response":{"GeoObjectCollection":{"featureMember":[%s]}}}`, strings.Join(members, ","))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}
