package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jamespfennell/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transit-planner/internal/transit"
)

func ptr(f float64) *float64 { return &f }

func TestConvert(t *testing.T) {
	a := gtfs.Stop{Id: "A", Name: "Alpha", Latitude: ptr(0), Longitude: ptr(0)}
	b := gtfs.Stop{Id: "B", Name: "Bravo", Latitude: ptr(0), Longitude: ptr(0.01)}
	c := gtfs.Stop{Id: "C", Name: "Charlie", Latitude: ptr(0), Longitude: ptr(0.02)}
	station := gtfs.Stop{Id: "ST", Name: "No coordinates"}
	route := gtfs.Route{Id: "r1", ShortName: "1", LongName: "Harbour", Color: "ff0000"}
	weekday := gtfs.Service{Id: "wk"}
	shape := gtfs.Shape{ID: "sh1", Points: []gtfs.ShapePoint{{Latitude: 0, Longitude: 0}, {Latitude: 0, Longitude: 0.02}}}

	stopTimes := func(dep time.Duration, stops ...*gtfs.Stop) []gtfs.ScheduledStopTime {
		out := make([]gtfs.ScheduledStopTime, len(stops))
		for i, s := range stops {
			// reversed on purpose; Convert orders by sequence
			out[len(stops)-1-i] = gtfs.ScheduledStopTime{Stop: s, StopSequence: i + 1, DepartureTime: dep + time.Duration(i)*time.Minute}
		}
		return out
	}

	static := &gtfs.Static{
		Stops:  []gtfs.Stop{a, b, c, station},
		Routes: []gtfs.Route{route},
		Shapes: []gtfs.Shape{shape},
		Trips: []gtfs.ScheduledTrip{
			{ID: "t1", Route: &route, Service: &weekday, Shape: &shape, StopTimes: stopTimes(7*time.Hour, &a, &b, &c)},
			{ID: "t2", Route: &route, Service: &weekday, StopTimes: stopTimes(7*time.Hour+20*time.Minute, &a, &b, &c)},
			{ID: "t3", Route: &route, Service: &weekday, DirectionId: 1, StopTimes: stopTimes(8*time.Hour, &c, &b, &a)},
			{ID: "orphan", Service: &weekday, StopTimes: stopTimes(9*time.Hour, &a, &b)},
			{ID: "empty", Route: &route, Service: &weekday},
		},
	}

	n := Convert(static, true)

	require.Len(t, n.Stops, 3)
	assert.Equal(t, transit.Stop{ID: "B", Name: "Bravo", Lat: 0, Lng: 0.01}, n.Stops[1])

	require.Len(t, n.Routes, 1)
	r := n.Routes[0]
	assert.Equal(t, "r1", r.ID)
	assert.Equal(t, "1 Harbour", r.Name)
	assert.Equal(t, "#FF0000", r.Color)
	assert.Equal(t, 20, r.DepartureIntervalMinutes)

	assert.Equal(t, []string{"A", "B", "C"}, r.Outbound.StopIDs)
	assert.Equal(t, "07:00", r.Outbound.FirstDeparture)
	assert.Equal(t, "07:20", r.Outbound.LastDeparture)
	assert.NotEmpty(t, r.Outbound.Polyline)

	assert.Equal(t, []string{"C", "B", "A"}, r.Inbound.StopIDs)
	assert.Equal(t, "08:00", r.Inbound.FirstDeparture)
	assert.Empty(t, r.Inbound.Polyline)

	assert.NoError(t, n.Validate())

	withoutShapes := Convert(static, false)
	assert.Empty(t, withoutShapes.Routes[0].Outbound.Polyline)
}

// feedZip builds a minimal static feed: one route with one trip over
// three stops.
func feedZip(t *testing.T) []byte {
	t.Helper()
	files := map[string]string{
		"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n" +
			"ag,Test Transit,https://example.com,UTC\n",
		"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
			"A,Alpha,0,0\nB,Bravo,0,0.01\nC,Charlie,0,0.02\n",
		"routes.txt": "route_id,agency_id,route_short_name,route_long_name,route_type,route_color\n" +
			"r1,ag,1,Harbour,3,00AA00\n",
		"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
			"wk,1,1,1,1,1,0,0,20250101,20261231\n",
		"trips.txt": "route_id,service_id,trip_id,direction_id\n" +
			"r1,wk,t1,0\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"t1,06:30:00,06:30:00,A,1\nt1,06:33:00,06:33:00,B,2\nt1,06:36:00,06:36:00,C,3\n",
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFileSourceLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.zip")
	require.NoError(t, os.WriteFile(path, feedZip(t), 0o600))

	src := &FileSource{Location: path}
	assert.Equal(t, "gtfs:"+path, src.String())

	n, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, n.Stops, 3)
	require.Len(t, n.Routes, 1)
	assert.Equal(t, []string{"A", "B", "C"}, n.Routes[0].Outbound.StopIDs)
	assert.Equal(t, "06:30", n.Routes[0].Outbound.FirstDeparture)
}

func TestFileSourceHTTP(t *testing.T) {
	feed := feedZip(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed.zip" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(feed)
	}))
	defer srv.Close()

	n, err := (&FileSource{Location: srv.URL + "/feed.zip"}).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, n.Stops, 3)

	_, err = (&FileSource{Location: srv.URL + "/missing.zip"}).Load(context.Background())
	assert.ErrorContains(t, err, "404")
}

func TestFileSourceErrors(t *testing.T) {
	_, err := (&FileSource{Location: filepath.Join(t.TempDir(), "nope.zip")}).Load(context.Background())
	assert.ErrorContains(t, err, "error reading local GTFS file")

	path := filepath.Join(t.TempDir(), "junk.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o600))
	_, err = (&FileSource{Location: path}).Load(context.Background())
	assert.ErrorContains(t, err, "error parsing GTFS data")
}
