package endpoint

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/theapemachine/toolgate/pkg/errors"
	"github.com/theapemachine/toolgate/pkg/types"
)

func TestClientWithoutSession(t *testing.T) {
	Convey("Given a client that was never started", t, func() {
		client := NewClient("svc")

		Convey("It should report not running everywhere", func() {
			So(client.IsRunning(), ShouldBeFalse)

			var notRunning *errors.NotRunningError

			_, err := client.ListTools(context.Background())
			So(stderrorsAs(err, &notRunning), ShouldBeTrue)

			_, err = client.CallTool(context.Background(), types.ToolCallRequest{Name: "echo"})
			So(stderrorsAs(err, &notRunning), ShouldBeTrue)

			So(stderrorsAs(client.Stop(context.Background()), &notRunning), ShouldBeTrue)
		})
	})
}

func TestClientAdoptedSession(t *testing.T) {
	Convey("Given a client with an adopted session", t, func() {
		session := &fakeSession{}
		client := NewClient("svc")
		client.adopt(session)

		Convey("It should refuse a second start while the session lives", func() {
			So(client.IsRunning(), ShouldBeTrue)

			var alreadyRunning *errors.AlreadyRunningError
			So(stderrorsAs(client.ensureNotRunning(), &alreadyRunning), ShouldBeTrue)
		})

		Convey("When stopped", func() {
			So(client.Stop(context.Background()), ShouldBeNil)

			Convey("The session should be closed and the client startable again", func() {
				So(session.closed, ShouldBeTrue)
				So(client.IsRunning(), ShouldBeFalse)
				So(client.ensureNotRunning(), ShouldBeNil)
			})
		})
	})
}

func TestEnvSlice(t *testing.T) {
	Convey("Given an environment map", t, func() {
		entries := envSlice(map[string]string{
			"ZEBRA": "1",
			"ALPHA": "2",
		})

		Convey("It should produce sorted KEY=value entries", func() {
			So(entries, ShouldResemble, []string{"ALPHA=2", "ZEBRA=1"})
		})

		Convey("An empty map should produce nil", func() {
			So(envSlice(nil), ShouldBeNil)
		})
	})
}
