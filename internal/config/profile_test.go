package config

import "testing"

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{
			name:    "valid api key profile",
			profile: Profile{Name: "anthropic", BaseURL: "https://api.anthropic.com", AuthType: AuthAPIKey},
		},
		{
			name:    "missing name",
			profile: Profile{BaseURL: "https://x.com"},
			wantErr: true,
		},
		{
			name:    "bad scheme",
			profile: Profile{Name: "x", BaseURL: "ftp://x.com"},
			wantErr: true,
		},
		{
			name:    "oauth without provider",
			profile: Profile{Name: "x", BaseURL: "https://x.com", AuthType: AuthOAuth},
			wantErr: true,
		},
		{
			name:    "oauth with provider",
			profile: Profile{Name: "x", BaseURL: "https://x.com", AuthType: AuthOAuth, OAuthProvider: OAuthChatGPT},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewProfileSetRejectsDuplicateNames(t *testing.T) {
	_, err := NewProfileSet([]*Profile{
		{Name: "a", BaseURL: "https://x.com", Enabled: true},
		{Name: "a", BaseURL: "https://y.com", Enabled: true},
	})
	if err == nil {
		t.Fatal("expected error for duplicate profile name")
	}
}

func TestNewProfileSetRejectsUnknownBackup(t *testing.T) {
	_, err := NewProfileSet([]*Profile{
		{Name: "a", BaseURL: "https://x.com", Enabled: true, BackupProviders: []string{"missing"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown backup profile")
	}
}

func TestProfileSetBackupsForSkipsDisabled(t *testing.T) {
	set, err := NewProfileSet([]*Profile{
		{Name: "primary", BaseURL: "https://x.com", Enabled: true, BackupProviders: []string{"b1", "b2"}},
		{Name: "b1", BaseURL: "https://y.com", Enabled: false},
		{Name: "b2", BaseURL: "https://z.com", Enabled: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	backups := set.BackupsFor("primary")
	if len(backups) != 1 || backups[0].Name != "b2" {
		t.Fatalf("expected only b2, got %+v", backups)
	}
}

func TestProfileCloneIsIndependent(t *testing.T) {
	orig := &Profile{
		Name:          "primary",
		APIKey:        "original-key",
		ExtraEnv:      map[string]string{"FOO": "bar"},
		CustomHeaders: map[string]string{"X-A": "1"},
		Models:        map[ModelSlot]string{ModelSonnet: "m1"},
	}
	clone := orig.Clone()

	clone.APIKey = "rotated-key"
	clone.ExtraEnv["FOO"] = "baz"
	clone.ExtraEnv["NEW"] = "added"
	clone.CustomHeaders["X-A"] = "2"
	clone.Models[ModelSonnet] = "m2"

	if orig.APIKey != "original-key" {
		t.Errorf("orig.APIKey mutated by clone: %q", orig.APIKey)
	}
	if orig.ExtraEnv["FOO"] != "bar" || orig.ExtraEnv["NEW"] != "" {
		t.Errorf("orig.ExtraEnv mutated by clone: %+v", orig.ExtraEnv)
	}
	if orig.CustomHeaders["X-A"] != "1" {
		t.Errorf("orig.CustomHeaders mutated by clone: %+v", orig.CustomHeaders)
	}
	if orig.Models[ModelSonnet] != "m1" {
		t.Errorf("orig.Models mutated by clone: %+v", orig.Models)
	}
}

func TestExtraEnvSet(t *testing.T) {
	p := &Profile{ExtraEnv: map[string]string{"COPILOT_AUTH": "true", "OTHER": "false"}}
	if !p.ExtraEnvSet("COPILOT_AUTH") {
		t.Error("expected COPILOT_AUTH to be set")
	}
	if p.ExtraEnvSet("OTHER") {
		t.Error("expected OTHER=false to be unset")
	}
	if p.ExtraEnvSet("MISSING") {
		t.Error("expected missing key to be unset")
	}
}
