package endpoint

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/theapemachine/toolgate/pkg/errors"
)

func TestManagerRegistration(t *testing.T) {
	Convey("Given a manager", t, func() {
		manager := NewManagerWithRestartDelay(time.Millisecond)

		Convey("When a local endpoint is registered without auto-start", func() {
			err := manager.RegisterLocal(context.Background(), "svc-a", "a", LocalSettings{
				Command: "/bin/true",
			}, nil, false)

			Convey("It should sit in the stopped state", func() {
				So(err, ShouldBeNil)

				info, getErr := manager.Get("svc-a")
				So(getErr, ShouldBeNil)
				So(info.Status, ShouldEqual, StatusStopped)
				So(info.Kind, ShouldEqual, KindLocal)
			})

			Convey("And a second registration under the same name should fail", func() {
				So(err, ShouldBeNil)

				dup := manager.RegisterRemote("svc-a", "elsewhere", RemoteSettings{
					URL: "http://localhost:9/sse",
				}, nil)

				var exists *errors.AlreadyExistsError
				So(stderrorsAs(dup, &exists), ShouldBeTrue)
			})
		})

		Convey("When a remote endpoint is registered", func() {
			err := manager.RegisterRemote("svc-r", "r", RemoteSettings{
				URL: "http://localhost:9/sse",
			}, nil)

			Convey("It should be routable by path", func() {
				So(err, ShouldBeNil)

				info, getErr := manager.GetByPath("r")
				So(getErr, ShouldBeNil)
				So(info.Name, ShouldEqual, "svc-r")
				So(info.Kind, ShouldEqual, KindRemote)
			})

			Convey("And the kind-specific accessors should respect the kind", func() {
				So(err, ShouldBeNil)

				_, localErr := manager.Local("svc-r")
				var notFound *errors.NotFoundError
				So(stderrorsAs(localErr, &notFound), ShouldBeTrue)

				remote, remoteErr := manager.Remote("svc-r")
				So(remoteErr, ShouldBeNil)
				So(remote.URL(), ShouldEqual, "http://localhost:9/sse")
			})
		})
	})
}

func TestManagerLifecycleErrors(t *testing.T) {
	Convey("Given a manager with two endpoints", t, func() {
		manager := NewManagerWithRestartDelay(time.Millisecond)
		So(manager.RegisterLocal(context.Background(), "svc-a", "a", LocalSettings{
			Command:          "/definitely/not/a/binary",
			HandshakeTimeout: 100 * time.Millisecond,
		}, nil, false), ShouldBeNil)
		So(manager.RegisterLocal(context.Background(), "svc-b", "b", LocalSettings{
			Command: "/bin/true",
		}, nil, false), ShouldBeNil)

		Convey("When starting an endpoint whose process cannot spawn", func() {
			err := manager.Start(context.Background(), "svc-a")

			Convey("The failure should be typed and recorded, leaving the other endpoint alone", func() {
				var startFailed *errors.StartFailedError
				So(stderrorsAs(err, &startFailed), ShouldBeTrue)

				a, _ := manager.Get("svc-a")
				So(a.Status, ShouldEqual, StatusFailed)

				b, _ := manager.Get("svc-b")
				So(b.Status, ShouldEqual, StatusStopped)
			})
		})

		Convey("When operating on endpoints in the wrong state", func() {
			Convey("Stopping a stopped endpoint should report not running", func() {
				err := manager.Stop(context.Background(), "svc-b")
				var notRunning *errors.NotRunningError
				So(stderrorsAs(err, &notRunning), ShouldBeTrue)
			})

			Convey("Getting a client for a stopped endpoint should report not running", func() {
				_, err := manager.GetClient(context.Background(), "svc-b")
				var notRunning *errors.NotRunningError
				So(stderrorsAs(err, &notRunning), ShouldBeTrue)
			})

			Convey("Unknown names should report not found", func() {
				err := manager.Start(context.Background(), "ghost")
				var notFound *errors.NotFoundError
				So(stderrorsAs(err, &notFound), ShouldBeTrue)
			})
		})
	})
}
