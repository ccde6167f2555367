package routing

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/theapemachine/toolgate/pkg/types"
)

func TestIsAllowed(t *testing.T) {
	Convey("Given the filter rules", t, func() {
		cases := []struct {
			about   string
			filter  *types.ToolFilter
			tool    string
			allowed bool
		}{
			{"nil filter allows everything", nil, "anything", true},
			{"empty filter allows everything", &types.ToolFilter{}, "anything", true},
			{"include admits listed tools", &types.ToolFilter{Include: []string{"a", "b"}}, "a", true},
			{"include rejects unlisted tools", &types.ToolFilter{Include: []string{"a", "b"}}, "c", false},
			{"exclude rejects listed tools", &types.ToolFilter{Exclude: []string{"a"}}, "a", false},
			{"exclude passes unlisted tools", &types.ToolFilter{Exclude: []string{"a"}}, "b", true},
			{
				"exclude wins over include",
				&types.ToolFilter{Include: []string{"a"}, Exclude: []string{"a"}},
				"a",
				false,
			},
		}

		for _, tc := range cases {
			Convey(tc.about, func() {
				So(IsAllowed(tc.tool, tc.filter), ShouldEqual, tc.allowed)
			})
		}
	})
}

func TestApplyFilter(t *testing.T) {
	Convey("Given a tool listing", t, func() {
		tools := []types.ToolDefinition{
			{Name: "read"},
			{Name: "write"},
			{Name: "delete"},
		}

		Convey("A nil filter should pass the listing through untouched", func() {
			So(len(ApplyFilter(tools, nil)), ShouldEqual, 3)
		})

		Convey("Filtering should preserve the original order", func() {
			filtered := ApplyFilter(tools, &types.ToolFilter{Exclude: []string{"write"}})

			So(len(filtered), ShouldEqual, 2)
			So(filtered[0].Name, ShouldEqual, "read")
			So(filtered[1].Name, ShouldEqual, "delete")
		})
	})
}
