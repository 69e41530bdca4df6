package db

import (
	"log"

	"manual-approval-workflow/internal/domain"
	"manual-approval-workflow/internal/user"
)

// appendOnlyTables carry a database trigger that rejects UPDATE and DELETE,
// so the audit trail cannot be rewritten even through a raw connection or a
// privileged bug. Enforcement lives in the database, not the application.
var appendOnlyTables = []string{
	"audit_log_entries",
	"field_history_entries",
}

const rejectMutationFn = `
CREATE OR REPLACE FUNCTION reject_append_only_mutation() RETURNS trigger AS $$
BEGIN
    RAISE EXCEPTION '% is append-only', TG_TABLE_NAME;
END;
$$ LANGUAGE plpgsql;
`

// Coordinate levels are nullable, and a unique index compares NULLs as
// distinct, so the sibling-uniqueness index must COALESCE them. -1 never
// collides with a real coordinate.
const siblingUniqueIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_chapter_sibling
ON chapters (manual_id, chapter_num,
             COALESCE(section_num, -1),
             COALESCE(subsection_num, -1),
             COALESCE(clause_num, -1));
`

// Migrate runs database migrations
func Migrate() {
	err := AppDb.AutoMigrate(
		&domain.User{},
		&domain.Manual{},
		&domain.Chapter{},
		&domain.Revision{},
		&domain.AuditLogEntry{},
		&domain.FieldHistoryEntry{},
	)

	if err != nil {
		log.Fatal(err)
	}

	if err := AppDb.Exec(siblingUniqueIndex).Error; err != nil {
		log.Fatal(err)
	}

	if err := installAppendOnlyGuards(); err != nil {
		log.Fatal(err)
	}

	log.Println("Database schema migrated successfully")
}

func installAppendOnlyGuards() error {
	if err := AppDb.Exec(rejectMutationFn).Error; err != nil {
		return err
	}
	for _, table := range appendOnlyTables {
		if err := AppDb.Exec(
			"DROP TRIGGER IF EXISTS " + table + "_append_only ON " + table,
		).Error; err != nil {
			return err
		}
		if err := AppDb.Exec(
			"CREATE TRIGGER " + table + "_append_only " +
				"BEFORE UPDATE OR DELETE ON " + table + " " +
				"FOR EACH ROW EXECUTE FUNCTION reject_append_only_mutation()",
		).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedData seeds the database with initial data (for development only)
func SeedData() {
	// Create a test approver if it doesn't exist
	userRepo := user.NewRepository(AppDb)

	testUser := &domain.User{
		Name:     "Test Approver",
		Email:    "approver@example.com",
		Password: "password123",
		Role:     domain.RoleApprover,
		IsActive: true,
	}

	// Check if user exists
	_, err := userRepo.FindByEmail(testUser.Email)
	if err != nil {
		userService := user.NewService(userRepo)
		// User doesn't exist, create it
		if err := userService.Register(testUser); err != nil {
			log.Printf("Error creating test approver: %v", err)
		} else {
			log.Printf("Created test approver: %s", testUser.Email)
		}
	} else {
		log.Printf("Test approver already exists: %s", testUser.Email)
	}
}
