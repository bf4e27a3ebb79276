package wordchain

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	turnDeadline = 90 * time.Second
	warnBefore   = 10 * time.Second
)

// ErrChannelBusy is returned when a channel already hosts a match.
var ErrChannelBusy = errors.New("channel already has an active match")

var forfeitTokens = map[string]bool{
	"gg": true, "기권": true, "항복": true, "포기": true,
}

// Messenger delivers game messages to a channel. Sends are best-effort;
// the match proceeds even if a message is dropped.
type Messenger interface {
	Send(channelID, text string)
}

// Manager owns all live matches, at most one per channel.
type Manager struct {
	engine  *Engine
	records *Records
	sender  Messenger
	log     zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

// NewManager creates the match manager.
func NewManager(engine *Engine, records *Records, sender Messenger, log zerolog.Logger) *Manager {
	return &Manager{
		engine:   engine,
		records:  records,
		sender:   sender,
		log:      log.With().Str("service", "wordchain").Logger(),
		sessions: make(map[string]*session),
	}
}

type player struct {
	id   string
	name string
}

type move struct {
	uid  string
	text string
}

type outcome int

const (
	outcomeMove outcome = iota
	outcomeTimeout
	outcomeForfeit
	outcomeStopped
)

type sessionMode int

const (
	modePractice sessionMode = iota
	modePvP
)

type session struct {
	key        string
	channelID  string
	mode       sessionMode
	players    [2]player // practice: [user, -]; pvp: [host, opponent]
	difficulty Difficulty

	engine  *Engine
	records *Records
	sender  Messenger
	log     zerolog.Logger

	input chan move
	stop  chan struct{}
}

func sessionKey(gid, cid string) string { return gid + ":" + cid }

// StartPractice opens a solo match against the search opponent.
func (m *Manager) StartPractice(gid, cid, uid, name string, difficulty Difficulty) error {
	s := &session{
		mode:       modePractice,
		players:    [2]player{{id: uid, name: name}},
		difficulty: difficulty,
	}
	return m.launch(gid, cid, s)
}

// StartPvP opens a two-player match. The host moves first.
func (m *Manager) StartPvP(gid, cid, hostID, hostName, opponentID, opponentName string) error {
	s := &session{
		mode: modePvP,
		players: [2]player{
			{id: hostID, name: hostName},
			{id: opponentID, name: opponentName},
		},
	}
	return m.launch(gid, cid, s)
}

func (m *Manager) launch(gid, cid string, s *session) error {
	key := sessionKey(gid, cid)

	m.mu.Lock()
	if _, busy := m.sessions[key]; busy {
		m.mu.Unlock()
		return ErrChannelBusy
	}
	s.key = key
	s.channelID = cid
	s.engine = m.engine
	s.records = m.records
	s.sender = m.sender
	s.log = m.log.With().Str("channel", cid).Logger()
	s.input = make(chan move, 8)
	s.stop = make(chan struct{})
	m.sessions[key] = s
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.release(key)
		s.run()
	}()
	return nil
}

func (m *Manager) release(key string) {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()
}

// Stop aborts the channel's match, if any. Aborted matches record nothing.
func (m *Manager) Stop(gid, cid string) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionKey(gid, cid)]
	m.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	return true
}

// Active reports whether the channel has a live match.
func (m *Manager) Active(gid, cid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[sessionKey(gid, cid)]
	return ok
}

// HandleMessage feeds a chat message to the channel's match. Returns true
// when the message was consumed by a match participant's turn.
func (m *Manager) HandleMessage(gid, cid, uid, content string) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionKey(gid, cid)]
	m.mu.Unlock()
	if !ok || !s.participant(uid) {
		return false
	}
	select {
	case s.input <- move{uid: uid, text: content}:
	default:
		// Input burst mid-turn; the oldest pending moves win.
	}
	return true
}

// Shutdown stops every match and waits for the loops to exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for _, s := range m.sessions {
		select {
		case <-s.stop:
		default:
			close(s.stop)
		}
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (s *session) participant(uid string) bool {
	return uid == s.players[0].id || (s.mode == modePvP && uid == s.players[1].id)
}

func (s *session) run() {
	if s.mode == modePractice {
		s.runPractice()
		return
	}
	s.runPvP()
}

func (s *session) runPractice() {
	user := s.players[0]
	s.send(fmt.Sprintf("끝말잇기 연습 시작! (%s) 아무 단어로 시작하세요. 기권은 gg", s.difficulty))

	used := make(map[string]bool)
	last := ""
	turns := 0
	for {
		word, result := s.awaitMove(user.id, last, used)
		switch result {
		case outcomeStopped:
			s.send("게임이 중단되었습니다.")
			return
		case outcomeTimeout:
			s.send(fmt.Sprintf("⏰ 시간 초과! %s님의 패배입니다.", user.name))
			s.finishPractice(user, false, turns)
			return
		case outcomeForfeit:
			s.send(fmt.Sprintf("%s님이 기권했습니다.", user.name))
			s.finishPractice(user, false, turns)
			return
		}
		used[word] = true
		last = word
		turns++

		if len(s.engine.Candidates(last, used)) == 0 {
			s.send(fmt.Sprintf("'%s'... 이을 단어가 없네요. %s님의 승리! 🎉", last, user.name))
			s.finishPractice(user, true, turns)
			return
		}

		reply, ok := s.engine.BestMove(last, used, SearchDepth(s.difficulty))
		if !ok {
			s.send(fmt.Sprintf("더 이상 이을 단어가 없습니다... %s님의 승리! 🎉", user.name))
			s.finishPractice(user, true, turns)
			return
		}
		used[reply] = true
		last = reply
		turns++
		s.send(reply)

		if len(s.engine.Candidates(last, used)) == 0 {
			s.send(fmt.Sprintf("'%s'은(는) 이을 단어가 없습니다. 제가 이겼네요!", last))
			s.finishPractice(user, false, turns)
			return
		}
	}
}

func (s *session) runPvP() {
	host, opponent := s.players[0], s.players[1]
	s.send(fmt.Sprintf("끝말잇기 대결! %s vs %s. %s님부터 시작하세요.", host.name, opponent.name, host.name))

	used := make(map[string]bool)
	last := ""
	turn := 0
	turns := 0
	for {
		mover, other := s.players[turn], s.players[1-turn]
		word, result := s.awaitMove(mover.id, last, used)
		switch result {
		case outcomeStopped:
			s.send("게임이 중단되었습니다.")
			return
		case outcomeTimeout:
			s.send(fmt.Sprintf("⏰ 시간 초과! %s님의 승리입니다.", other.name))
			s.finishPvP(other, mover, turns)
			return
		case outcomeForfeit:
			s.send(fmt.Sprintf("%s님이 기권했습니다. %s님의 승리!", mover.name, other.name))
			s.finishPvP(other, mover, turns)
			return
		}
		used[word] = true
		last = word
		turns++

		if len(s.engine.Candidates(last, used)) == 0 {
			s.send(fmt.Sprintf("'%s'... 이을 단어가 없습니다. %s님의 승리! 🎉", last, mover.name))
			s.finishPvP(mover, other, turns)
			return
		}
		turn = 1 - turn
	}
}

// awaitMove waits for the mover's next legal word. Illegal submissions are
// answered without ending the turn; the 90s clock keeps running through
// them, with one warning 10 seconds from the end.
func (s *session) awaitMove(uid, last string, used map[string]bool) (string, outcome) {
	deadline := time.NewTimer(turnDeadline)
	defer deadline.Stop()
	warn := time.NewTimer(turnDeadline - warnBefore)
	defer warn.Stop()

	for {
		select {
		case <-s.stop:
			return "", outcomeStopped
		case <-deadline.C:
			return "", outcomeTimeout
		case <-warn.C:
			s.send("⏰ 10초 남았습니다!")
		case mv := <-s.input:
			if mv.uid != uid {
				continue
			}
			word := strings.TrimSpace(mv.text)
			if forfeitTokens[strings.ToLower(word)] {
				return "", outcomeForfeit
			}
			switch s.engine.Validate(last, word, used) {
			case MoveOK:
				return word, outcomeMove
			case MoveUsed:
				s.send(fmt.Sprintf("'%s'은(는) 이미 나온 단어입니다.", word))
			case MoveNotWord:
				s.send(fmt.Sprintf("'%s'은(는) 사전에 없는 단어입니다.", word))
			case MoveIllegalFirst:
				s.send(fmt.Sprintf("'%s'(으)로 시작할 수 없습니다. '%s'을(를) 이어야 합니다.", word, last))
			}
		}
	}
}

func (s *session) finishPractice(user player, won bool, turns int) {
	if err := s.records.Add(user.id, user.name, won); err != nil {
		s.log.Error().Err(err).Str("user", user.id).Msg("Failed to record match")
	}
	s.summary(turns)
}

func (s *session) finishPvP(winner, loser player, turns int) {
	if err := s.records.Add(winner.id, winner.name, true); err != nil {
		s.log.Error().Err(err).Str("user", winner.id).Msg("Failed to record match")
	}
	if err := s.records.Add(loser.id, loser.name, false); err != nil {
		s.log.Error().Err(err).Str("user", loser.id).Msg("Failed to record match")
	}
	s.summary(turns)
}

func (s *session) summary(turns int) {
	s.log.Info().Int("turns", turns).Msg("Match finished")
}

func (s *session) send(text string) {
	if s.sender != nil {
		s.sender.Send(s.channelID, text)
	}
}
