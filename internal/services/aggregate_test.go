package services

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("user-%d", n)
	}
}

func worked(pairs ...any) WorkedHours {
	var w WorkedHours
	for i := 0; i+1 < len(pairs); i += 2 {
		w.add(pairs[i].(string), pairs[i+1].(float64))
	}
	return w
}

var testSprint = domain.Sprint{ID: 1, Name: "Sprint 1", State: "active", StartDate: "2024-01-01", EndDate: "2024-01-14"}

func TestAggregate_OwnerAndContributor(t *testing.T) {
	issues := []EnrichedIssue{{
		Issue:    domain.Issue{Key: "A-1", Summary: "Build", StoryPoints: 5, Assignee: "Alice"},
		Worked:   worked("Alice", 3.0, "Bob", 2.0),
		Comments: "-",
	}}
	d := Aggregate(testSprint, issues, 1, seqIDs())

	alice := d.UserData["Alice"][0]
	if alice.HoursLogged != 3 || alice.Difference != 2 || alice.ContributedButNotOwner || alice.DisplayLabel != "A-1" {
		t.Fatalf("alice ticket = %+v", alice)
	}
	bob := d.UserData["Bob"][0]
	if bob.HoursLogged != 2 || bob.Difference != 3 || !bob.ContributedButNotOwner || bob.DisplayLabel != "A-1 (Alice)" {
		t.Fatalf("bob ticket = %+v", bob)
	}
	if d.Totals.AllStoryPoints != 5 || d.Totals.AllHours != 5 || d.Totals.AllHoursFormatted != "5h 0m" {
		t.Fatalf("totals = %+v", d.Totals)
	}
	if d.UserSummaries["Alice"].OwnStoryPoints != 5 || d.UserSummaries["Bob"].OwnStoryPoints != 0 {
		t.Fatalf("summaries = %+v", d.UserSummaries)
	}
	if !reflect.DeepEqual(d.Users, []string{"Alice", "Bob"}) {
		t.Fatalf("users = %v", d.Users)
	}
}

func TestAggregate_UnassignedWithoutWorklogsYieldsNothing(t *testing.T) {
	issues := []EnrichedIssue{{Issue: domain.Issue{Key: "A-2", StoryPoints: 3, Assignee: domain.Unassigned}}}
	d := Aggregate(testSprint, issues, 1, seqIDs())
	if len(d.Users) != 0 || len(d.UserData) != 0 || d.Totals.AllStoryPoints != 0 {
		t.Fatalf("expected empty report, got %+v", d)
	}
}

func TestAggregate_AssigneeWithoutWorklogsGetsRow(t *testing.T) {
	issues := []EnrichedIssue{{Issue: domain.Issue{Key: "A-3", StoryPoints: 2, Assignee: "Carol"}}}
	d := Aggregate(domain.Sprint{ID: 2}, issues, 2, seqIDs())
	tk := d.UserData["Carol"][0]
	if tk.HoursLogged != 0 || tk.Difference != 4 || tk.HoursLoggedFormatted != "-" || tk.Comments != "-" {
		t.Fatalf("ticket = %+v", tk)
	}
	if d.SprintName != "Unnamed Sprint" {
		t.Fatalf("sprint name = %q", d.SprintName)
	}
}

func fixtureIssues() []EnrichedIssue {
	return []EnrichedIssue{
		{Issue: domain.Issue{Key: "A-1", StoryPoints: 5, Assignee: "Alice"}, Worked: worked("Bob", 1.5, "Alice", 4.0)},
		{Issue: domain.Issue{Key: "A-2", StoryPoints: 3, Assignee: "Bob"}, Worked: worked("Bob", 3.0)},
		{Issue: domain.Issue{Key: "A-3", StoryPoints: 2, Assignee: "Carol"}, Worked: worked("Alice", 0.25)},
		{Issue: domain.Issue{Key: "A-4", StoryPoints: 8, Assignee: domain.Unassigned}, Worked: worked("Dan", 6.0)},
	}
}

func TestAggregate_Properties(t *testing.T) {
	const hpsp = 1.5
	d := Aggregate(testSprint, fixtureIssues(), hpsp, seqIDs())

	if !reflect.DeepEqual(d.Users, []string{"Bob", "Alice", "Carol", "Dan"}) {
		t.Fatalf("users = %v", d.Users)
	}
	var allSP float64
	for _, u := range d.Users {
		var own float64
		for _, tk := range d.UserData[u] {
			if tk.Difference != tk.StoryPoints*hpsp-tk.HoursLogged {
				t.Errorf("%s %s difference = %v", u, tk.TicketKey, tk.Difference)
			}
			if (tk.DifferenceFormatted == "-") != (tk.Difference == 0) {
				t.Errorf("%s %s difference fmt = %q for %v", u, tk.TicketKey, tk.DifferenceFormatted, tk.Difference)
			}
			if !tk.ContributedButNotOwner {
				own += tk.StoryPoints
			}
		}
		if got := d.UserSummaries[u].OwnStoryPoints; got != own {
			t.Errorf("%s own story points = %v, want %v", u, got, own)
		}
		allSP += own
	}
	if d.Totals.AllStoryPoints != allSP {
		t.Fatalf("all story points = %v, want %v", d.Totals.AllStoryPoints, allSP)
	}
	if d.UserData["Dan"][0].DisplayLabel != "A-4 (Unassigned)" {
		t.Fatalf("unassigned label = %q", d.UserData["Dan"][0].DisplayLabel)
	}
}

func TestAggregate_IdempotentModuloUserID(t *testing.T) {
	a := Aggregate(testSprint, fixtureIssues(), 1, nil)
	b := Aggregate(testSprint, fixtureIssues(), 1, nil)
	if !reflect.DeepEqual(a.UserData, b.UserData) || !reflect.DeepEqual(a.Totals, b.Totals) || !reflect.DeepEqual(a.Users, b.Users) {
		t.Fatalf("aggregation is not deterministic")
	}
	for _, u := range a.Users {
		sa, sb := a.UserSummaries[u], b.UserSummaries[u]
		if sa.UserID == "" || sb.UserID == "" || sa.UserID == sb.UserID {
			t.Fatalf("user ids for %s: %q %q", u, sa.UserID, sb.UserID)
		}
		sa.UserID, sb.UserID = "", ""
		if sa != sb {
			t.Fatalf("summary for %s differs: %+v vs %+v", u, sa, sb)
		}
	}
}
