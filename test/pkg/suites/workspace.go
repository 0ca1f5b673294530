package suites

import (
	"fmt"
	"time"

	testpkg "github.com/HyphaGroup/oubliette/test/pkg/testing"
)

// GetWorkspaceTests returns workspace management test suite
func GetWorkspaceTests() []*testpkg.TestCase {
	return []*testpkg.TestCase{
		{
			Name:        "test_workspace_list",
			Description: "Test listing workspaces for a project",
			Tags:        []string{"workspace", "management"},
			Timeout:     30 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				projName := fmt.Sprintf("test-workspace-list-%d", time.Now().UnixNano())

				// Create project
				projID, err := ctx.CreateProject(projName, "Test project for workspace listing")
				ctx.Assertions.AssertNoError(err, "Should create project")
				if err != nil {
					return err
				}

				// List workspaces - should have default workspace
				params := map[string]interface{}{
					"action":     "list",
					"project_id": projID,
				}
				result, err := ctx.Client.InvokeTool("workspace", params)
				ctx.Assertions.AssertNoError(err, "Should list workspaces")

				if err == nil {
					content := result.GetToolContent()
					ctx.Assertions.AssertContains(content, "workspace", "Should show workspace info")
					ctx.Assertions.AssertContains(content, "default", "Should show default workspace")
					ctx.Log("Workspace list result: %s", content[:min(200, len(content))])
				}

				return nil
			},
		},

		{
			Name:        "test_workspace_create_on_spawn",
			Description: "Test creating workspace via spawn with create_workspace=true",
			Tags:        []string{"workspace", "spawn"},
			Timeout:     60 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				projName := fmt.Sprintf("test-workspace-spawn-%d", time.Now().UnixNano())

				// Create project
				projID, err := ctx.CreateProject(projName, "Test project for workspace creation via spawn")
				ctx.Assertions.AssertNoError(err, "Should create project")
				if err != nil {
					return err
				}

				// Spawn session with create_workspace=true (no workspace_id, so new UUID generated)
				spawnParams := map[string]interface{}{
					"project_id":       projID,
					"prompt":           "Echo 'workspace test'",
					"create_workspace": true,
					"external_id":      "test-user-123",
					"source":           "test",
				}
				result, err := ctx.Client.InvokeTool("session", spawnParams)
				ctx.Assertions.AssertNoError(err, "Should spawn session with new workspace")

				if err == nil {
					content := result.GetToolContent()
					ctx.Assertions.AssertContains(content, "Workspace:", "Should show workspace ID")
					ctx.Assertions.AssertContains(content, "(created)", "Should indicate workspace was created")
					ctx.Log("Spawn result: %s", content[:min(300, len(content))])
				}

				// List workspaces - should now have 2 (default + new)
				listParams := map[string]interface{}{
					"action":     "list",
					"project_id": projID,
				}
				listResult, err := ctx.Client.InvokeTool("workspace", listParams)
				ctx.Assertions.AssertNoError(err, "Should list workspaces")

				if err == nil {
					content := listResult.GetToolContent()
					ctx.Assertions.AssertContains(content, "2 workspace", "Should have 2 workspaces")
					ctx.Assertions.AssertContains(content, "External ID: test-user-123", "Should show external ID")
					ctx.Assertions.AssertContains(content, "Source: test", "Should show source")
					ctx.Log("Workspace list: %s", content[:min(500, len(content))])
				}

				return nil
			},
		},

		{
			Name:        "test_workspace_delete",
			Description: "Test deleting a non-default workspace",
			Tags:        []string{"workspace", "delete"},
			Timeout:     60 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				projName := fmt.Sprintf("test-workspace-delete-%d", time.Now().UnixNano())

				// Create project
				projID, err := ctx.CreateProject(projName, "Test project for workspace deletion")
				ctx.Assertions.AssertNoError(err, "Should create project")
				if err != nil {
					return err
				}

				// Spawn session with specific workspace_id + create_workspace=true
				workspaceID := "test-ws-to-delete"
				spawnParams := map[string]interface{}{
					"project_id":       projID,
					"prompt":           "Echo 'test'",
					"workspace_id":     workspaceID,
					"create_workspace": true,
				}
				_, err = ctx.Client.InvokeTool("session", spawnParams)
				ctx.Assertions.AssertNoError(err, "Should spawn session creating workspace")
				if err != nil {
					return err
				}

				// Verify workspace exists
				listParams := map[string]interface{}{
					"action":     "list",
					"project_id": projID,
				}
				listResult, err := ctx.Client.InvokeTool("workspace", listParams)
				ctx.Assertions.AssertNoError(err, "Should list workspaces")
				if err == nil {
					content := listResult.GetToolContent()
					ctx.Assertions.AssertContains(content, workspaceID, "Should show new workspace")
				}

				// Delete workspace
				deleteParams := map[string]interface{}{
					"action":       "delete",
					"project_id":   projID,
					"workspace_id": workspaceID,
				}
				deleteResult, err := ctx.Client.InvokeTool("workspace", deleteParams)
				ctx.Assertions.AssertNoError(err, "Should delete workspace")

				if err == nil {
					content := deleteResult.GetToolContent()
					ctx.Assertions.AssertContains(content, "deleted successfully", "Should confirm deletion")
				}

				// Verify workspace is gone
				listResult2, err := ctx.Client.InvokeTool("workspace", listParams)
				ctx.Assertions.AssertNoError(err, "Should list workspaces after delete")
				if err == nil {
					content := listResult2.GetToolContent()
					ctx.Assertions.AssertNotContains(content, workspaceID, "Deleted workspace should not appear")
				}

				return nil
			},
		},

		{
			Name:        "test_workspace_delete_default_fails",
			Description: "Test that deleting the default workspace fails",
			Tags:        []string{"workspace", "delete", "negative"},
			Timeout:     30 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				projName := fmt.Sprintf("test-workspace-delete-default-%d", time.Now().UnixNano())

				// Create project
				projID, err := ctx.CreateProject(projName, "Test project for default workspace deletion")
				ctx.Assertions.AssertNoError(err, "Should create project")
				if err != nil {
					return err
				}

				// Get default workspace ID from project
				getParams := map[string]interface{}{
					"action":     "get",
					"project_id": projID,
				}
				getResult, err := ctx.Client.InvokeTool("project", getParams)
				ctx.Assertions.AssertNoError(err, "Should get project")

				// List workspaces to get default ID
				listParams := map[string]interface{}{
					"action":     "list",
					"project_id": projID,
				}
				listResult, err := ctx.Client.InvokeTool("workspace", listParams)
				ctx.Assertions.AssertNoError(err, "Should list workspaces")

				// The default workspace is marked with "(default)" in the list
				_ = getResult.GetToolContent()
				content := listResult.GetToolContent()
				ctx.Log("Workspace list content: %s", content)

				// Spawn without create_workspace, which runs in the default workspace
				spawnParams := map[string]interface{}{
					"project_id": projID,
					"prompt":     "Echo test",
				}
				spawnResult, err := ctx.Client.InvokeTool("session", spawnParams)
				ctx.Assertions.AssertNoError(err, "Should spawn to default workspace")

				if err == nil {
					spawnContent := spawnResult.GetToolContent()
					ctx.Log("Spawn result: %s", spawnContent[:min(300, len(spawnContent))])
				}

				// Try to delete the default workspace - this should fail
				defaultWS, err := ctx.GetDefaultWorkspaceID(projID)
				ctx.Assertions.AssertNoError(err, "Should find default workspace ID")
				if err == nil {
					deleteResult, err := ctx.Client.InvokeTool("workspace", map[string]interface{}{
						"action":       "delete",
						"project_id":   projID,
						"workspace_id": defaultWS,
					})
					ctx.Assertions.AssertNoError(err, "Should invoke workspace delete")
					if err == nil {
						ctx.Assertions.AssertTrue(deleteResult.IsError, "Deleting the default workspace should fail")
					}
				}

				return nil
			},
		},
	}
}

