package domain

import "testing"

func TestUser_Equal(t *testing.T) {
	base := User{
		ID: 7, Username: "alice", Email: "alice@example.com",
		FirstName: "Alice", LastName: "Doe", Role: "member",
		Profile: &Profile{UserType: "individual"},
	}

	t.Run("identical records", func(t *testing.T) {
		other := base
		profile := *base.Profile
		other.Profile = &profile
		if !base.Equal(&other) {
			t.Error("Equal() = false for structurally identical users")
		}
	})

	t.Run("changed field", func(t *testing.T) {
		other := base
		other.Email = "new@example.com"
		if base.Equal(&other) {
			t.Error("Equal() = true despite different email")
		}
	})

	t.Run("changed profile", func(t *testing.T) {
		other := base
		other.Profile = &Profile{UserType: "organization"}
		if base.Equal(&other) {
			t.Error("Equal() = true despite different profile")
		}
	})

	t.Run("nil handling", func(t *testing.T) {
		var nilUser *User
		if nilUser.Equal(&base) {
			t.Error("Equal() = true for nil receiver")
		}
		if !nilUser.Equal(nil) {
			t.Error("Equal() = false for two nils")
		}
	})
}

func TestUserPatch_Apply(t *testing.T) {
	base := User{ID: 7, Username: "alice", Email: "alice@example.com", FirstName: "Alice"}

	first := "Alicia"
	merged := UserPatch{FirstName: &first}.Apply(base)

	if merged.FirstName != "Alicia" {
		t.Errorf("FirstName = %q, want Alicia", merged.FirstName)
	}
	if merged.Email != base.Email || merged.Username != base.Username || merged.ID != base.ID {
		t.Error("Apply() modified fields outside the patch")
	}
	if base.FirstName != "Alice" {
		t.Error("Apply() mutated the original user")
	}
}

func TestUser_FullName(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"both names", User{FirstName: "Alice", LastName: "Doe", Username: "alice"}, "Alice Doe"},
		{"first only", User{FirstName: "Alice", Username: "alice"}, "Alice"},
		{"username fallback", User{Username: "alice"}, "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.FullName(); got != tt.want {
				t.Errorf("FullName() = %q, want %q", got, tt.want)
			}
		})
	}
}
