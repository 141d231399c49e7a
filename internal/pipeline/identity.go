package pipeline

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/internal/resilience"
	"github.com/braxsimmons/Cliopa/internal/store"
)

// teamDomains maps domain substrings to team names. Order matters: the
// first match wins.
var teamDomains = []struct {
	substr string
	team   string
}{
	{"boostcreditline", "Boost"},
	{"bisongreen", "Bison"},
	{"tlc", "TLC"},
	{"yattaops", "Yatta"},
}

// bcryptCost is lowered in tests.
var bcryptCost = bcrypt.DefaultCost

// Resolve maps every agent email in calls to an identity id, creating the
// identities that do not exist yet. Succeeded holds the identities created
// by this call; keys that could not be created are skipped and absent
// from the map. A failed bulk lookup fails the stage.
func Resolve(ctx context.Context, st store.Store, calls []model.CallCandidate, retry resilience.RetryConfig, concurrency int) (map[string]string, *model.StageResult[model.AgentIdentity], error) {
	result := &model.StageResult[model.AgentIdentity]{}
	log := zap.L().With(zap.String("stage", "identity"))

	// Distinct keys in first-seen order, with the first non-empty name.
	names := make(map[string]string)
	var keys []string
	for _, c := range calls {
		key := c.AgentKey()
		if key == "" {
			continue
		}
		name, seen := names[key]
		if !seen {
			keys = append(keys, key)
		}
		if name == "" {
			names[key] = strings.TrimSpace(c.AgentName)
		}
	}
	ids := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return ids, result, nil
	}

	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("store", "find_agents")
	}
	existing, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (map[string]model.AgentIdentity, error) {
		return st.FindAgentsByEmail(ctx, keys)
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: agent lookup")
	}

	var missing []string
	for _, key := range keys {
		if a, ok := existing[key]; ok {
			ids[key] = a.ID
			continue
		}
		missing = append(missing, key)
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limitOrDefault(concurrency))
	for _, key := range missing {
		g.Go(func() error {
			agent, err := createAgent(gCtx, st, key, names[key])
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error("pipeline: create agent failed", zap.String("agent_email", key), zap.Error(err))
				result.Skip(key, "create_failed", err)
				return nil
			}
			ids[key] = agent.ID
			result.Succeeded = append(result.Succeeded, *agent)
			log.Info("pipeline: created agent",
				zap.String("agent_email", key),
				zap.String("first_name", agent.FirstName),
				zap.String("last_name", agent.LastName),
				zap.String("team", agent.Team),
			)
			return nil
		})
	}
	_ = g.Wait()

	log.Info("pipeline: agents resolved",
		zap.Int("agents", len(keys)),
		zap.Int("existing", len(keys)-len(missing)),
		zap.Int("created", len(result.Succeeded)),
		zap.Int("failed", len(result.Skipped)),
	)
	return ids, result, nil
}

func createAgent(ctx context.Context, st store.Store, email, agentName string) (*model.AgentIdentity, error) {
	first, last := DeriveName(agentName, email)
	hash, err := temporarySecretHash()
	if err != nil {
		return nil, err
	}
	return st.CreateAgent(ctx, model.NewAgent{
		Email:        email,
		FirstName:    first,
		LastName:     last,
		Team:         DeriveTeam(email),
		PasswordHash: hash,
	})
}

// DeriveName splits a display name on its first whitespace. Without a
// display name the email's local part is split on dots and underscores
// and title-cased: the first token is the first name, the rest the last.
func DeriveName(agentName, email string) (first, last string) {
	if name := strings.TrimSpace(agentName); name != "" {
		i := strings.IndexFunc(name, unicode.IsSpace)
		if i < 0 {
			return name, ""
		}
		return name[:i], strings.TrimSpace(name[i:])
	}

	local := email
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		local = email[:i]
	}
	tokens := strings.FieldsFunc(local, func(r rune) bool { return r == '.' || r == '_' })
	if len(tokens) == 0 {
		return "", ""
	}
	// A Caser holds transform state and must not be shared across goroutines.
	caser := cases.Title(language.Und)
	for i, t := range tokens {
		tokens[i] = caser.String(t)
	}
	return tokens[0], strings.Join(tokens[1:], " ")
}

// DeriveTeam returns the team owning the email's domain, or "".
func DeriveTeam(email string) string {
	i := strings.LastIndexByte(email, '@')
	if i < 0 {
		return ""
	}
	domain := strings.ToLower(email[i+1:])
	for _, td := range teamDomains {
		if strings.Contains(domain, td.substr) {
			return td.team
		}
	}
	return ""
}

// temporarySecretHash generates a random credential and returns only its
// bcrypt hash. The secret itself is never stored or logged.
func temporarySecretHash() (string, error) {
	secret := "Temp-" + uuid.NewString() + "!"
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: hash temporary secret")
	}
	return string(hash), nil
}
