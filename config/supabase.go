package config

import (
	"fmt"
	"log"
	"os"

	supa "github.com/supabase-community/supabase-go"
)

// StorageBucket is the bucket holding all deliverable files. Beta previews
// and final files share the bucket; watermarking is a property of the file,
// not the location.
const StorageBucket = "deliverables"

var SupabaseClient *supa.Client

// InitSupabase initializes the Supabase client using environment variables.
// SUPABASE_URL and SUPABASE_SERVICE_KEY are both required; the portal always
// runs with the service key because row-level access control is enforced by
// the permission evaluator, not by Supabase policies.
func InitSupabase() error {
	supabaseURL := os.Getenv("SUPABASE_URL")
	if supabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is not set")
	}

	supabaseKey := os.Getenv("SUPABASE_SERVICE_KEY")
	if supabaseKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is not set")
	}

	client, err := supa.NewClient(supabaseURL, supabaseKey, nil)
	if err != nil {
		return fmt.Errorf("error initializing Supabase client: %w", err)
	}

	SupabaseClient = client
	log.Println("Supabase client initialized successfully.")
	return nil
}

// GetSupabaseClient returns the initialized Supabase client.
func GetSupabaseClient() *supa.Client {
	if SupabaseClient == nil {
		if err := InitSupabase(); err != nil {
			log.Printf("Supabase client accessed before initialization: %v", err)
		}
	}
	return SupabaseClient
}

// GetSupabaseURL returns the Supabase URL used for API requests.
func GetSupabaseURL() string {
	return os.Getenv("SUPABASE_URL")
}

// GetPort returns the HTTP listen port.
func GetPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8080"
}

// GetProcessorAddr returns the base URL of the video-processor service used
// for thumbnail generation. Empty means thumbnailing is disabled.
func GetProcessorAddr() string {
	return os.Getenv("PROCESSOR_ADDR")
}
