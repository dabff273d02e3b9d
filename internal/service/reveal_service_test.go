package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/hackstage/hackstage-api/internal/models"
)

func revealFixture(t *testing.T) (RevealService, *submissionRepoStub, *hackathonRepoStub) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	judging := openHackathon(1)
	judging.Status = models.HackathonStatusJudging
	hackathons := newHackathonRepoStub(judging)

	first := entry("sub-a", 1, "Alpha")
	second := entry("sub-b", 1, "Beta")
	third := entry("sub-c", 1, "Gamma")
	alphaScore, betaScore := 90, 40
	first.AI.Score = &alphaScore
	second.AI.Score = &betaScore
	submissions := newSubmissionRepoStub(first, second, third)

	ratings := &ratingRepoStub{items: []models.Rating{
		{SubmissionID: "sub-a", JudgeID: 1, Score: 80},
		{SubmissionID: "sub-a", JudgeID: 2, Score: 100},
		{SubmissionID: "sub-b", JudgeID: 1, Score: 60},
	}}

	svc := NewRevealService(submissions, hackathons, ratings, redisClient, time.Hour, testLogger())
	return svc, submissions, hackathons
}

func TestRevealStandingsRankByBlendedScore(t *testing.T) {
	svc, _, _ := revealFixture(t)

	state, err := svc.Start(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, state.Started)
	require.False(t, state.Finished)
	require.Equal(t, 3, state.TotalEntries)
	// Nothing revealed yet: every standing is masked down to its rank.
	for _, standing := range state.Standings {
		require.Empty(t, standing.SubmissionID)
	}
	require.Equal(t, 3, state.NextRank)
}

func TestRevealStepsFromLastPlaceToWinner(t *testing.T) {
	svc, _, hackathons := revealFixture(t)

	_, err := svc.Start(context.Background(), 1)
	require.NoError(t, err)

	// Last place first: Gamma has no ratings and no AI score.
	state, err := svc.Next(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, state.LastRevealed)
	require.Equal(t, "sub-c", state.LastRevealed.SubmissionID)
	require.Equal(t, 3, state.LastRevealed.Rank)

	state, err = svc.Next(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "sub-b", state.LastRevealed.SubmissionID)

	state, err = svc.Next(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "sub-a", state.LastRevealed.SubmissionID)
	require.Equal(t, 1, state.LastRevealed.Rank)
	require.True(t, state.Finished)

	// The ceremony marks the event revealed.
	hackathon, err := hackathons.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, models.HackathonStatusRevealed, hackathon.Status)

	// Stepping past the winner is a no-op.
	again, err := svc.Next(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, again.Finished)
	require.Equal(t, "sub-a", again.LastRevealed.SubmissionID)
}

func TestRevealStartTwiceFails(t *testing.T) {
	svc, _, _ := revealFixture(t)

	_, err := svc.Start(context.Background(), 1)
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), 1)
	require.ErrorIs(t, err, ErrRevealAlreadyStarted)
}

func TestRevealStateWithoutCeremony(t *testing.T) {
	svc, _, _ := revealFixture(t)

	_, err := svc.State(context.Background(), 1)
	require.ErrorIs(t, err, ErrRevealNotStarted)
}

func TestRevealBlendUsesAvailableSides(t *testing.T) {
	judgeAvg := 90.0
	aiScore := 50

	require.InDelta(t, 0.7*90+0.3*50, blendScores(&judgeAvg, &aiScore, 0.7), 1e-9)
	require.InDelta(t, 90, blendScores(&judgeAvg, nil, 0.7), 1e-9)
	require.InDelta(t, 50, blendScores(nil, &aiScore, 0.7), 1e-9)
	require.Zero(t, blendScores(nil, nil, 0.7))
}
