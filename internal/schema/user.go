package schema

import "github.com/chatforge/realmsync/internal/domain"

// BuildUserConfig returns the root node for a single-user export: the user
// row itself is the seed, and streams are resolved indirectly through the
// user's subscriptions (subscription → recipient → stream), so the export
// contains exactly the streams the user can see.
func BuildUserConfig() (*Node, error) {
	user := &Node{Table: domain.TableUserProfile, IsSeeded: true}

	sub := child(user, &Node{
		Table:        domain.TableSubscription,
		NormalParent: user,
		ParentFK:     "user_profile_id",
	})

	recipient := virtualChild(sub, &Node{
		Table:         domain.TableRecipient,
		IDSourceTable: domain.TableSubscription,
		IDSourceField: "recipient",
	})

	virtualChild(recipient, &Node{
		Table:         domain.TableStream,
		IDSourceTable: domain.TableRecipient,
		IDSourceField: "type_id",
		SourceFilter: func(r domain.Record) bool {
			return r.Int("type") == domain.RecipientStream
		},
		Exclude: []string{"email_token"},
	})

	if err := Validate(user); err != nil {
		return nil, err
	}
	return user, nil
}
